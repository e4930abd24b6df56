// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFakeNowAdvance(t *testing.T) {
	fake := Fake(testEpoch)
	if !fake.Now().Equal(testEpoch) {
		t.Fatalf("Now() = %v, want %v", fake.Now(), testEpoch)
	}

	fake.Advance(3 * time.Second)
	want := testEpoch.Add(3 * time.Second)
	if !fake.Now().Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", fake.Now(), want)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	fake := Fake(testEpoch)
	ch := fake.After(5 * time.Second)

	fake.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(testEpoch.Add(5 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, testEpoch.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(testEpoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeAfterFuncOrderAndStop(t *testing.T) {
	fake := Fake(testEpoch)

	var order []string
	fake.AfterFunc(2*time.Second, func() { order = append(order, "second") })
	fake.AfterFunc(1*time.Second, func() { order = append(order, "first") })
	stopped := fake.AfterFunc(3*time.Second, func() { order = append(order, "never") })

	if !stopped.Stop() {
		t.Fatal("Stop() on pending timer returned false")
	}

	fake.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("callback order = %v, want [first second]", order)
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	fake := Fake(testEpoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	ticks := 0
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
		ticks++
	default:
	}
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
		ticks++
	default:
	}

	if ticks != 2 {
		t.Fatalf("ticks = %d, want 2", ticks)
	}

	ticker.Stop()
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired after Stop")
	default:
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(testEpoch)

	done := make(chan struct{})
	go func() {
		<-fake.After(time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire after WaitForTimers + Advance")
	}
}
