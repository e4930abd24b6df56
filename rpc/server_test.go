// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
)

// startServer runs a server on a temp socket and waits for the
// listener to come up.
func startServer(t *testing.T, register func(*Server)) *Client {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "babble.sock")
	server := NewServer(socketPath, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Wait until the socket accepts connections.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return NewClient(socketPath)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server socket never came up")
	return nil
}

func TestCallRoundTrip(t *testing.T) {
	client := startServer(t, func(server *Server) {
		server.Handle("echo", func(_ context.Context, raw []byte) (any, error) {
			var request struct {
				Text string `cbor:"text"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]any{"echoed": request.Text}, nil
		})
	})

	var result struct {
		Echoed string `cbor:"echoed"`
	}
	err := client.Call(context.Background(), "echo", map[string]any{"text": "ping"}, &result)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result.Echoed != "ping" {
		t.Errorf("echoed = %q, want ping", result.Echoed)
	}
}

func TestCallWithNilResult(t *testing.T) {
	invoked := make(chan struct{}, 1)
	client := startServer(t, func(server *Server) {
		server.Handle("fire", func(context.Context, []byte) (any, error) {
			invoked <- struct{}{}
			return nil, nil
		})
	})

	if err := client.Call(context.Background(), "fire", nil, nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	select {
	case <-invoked:
	default:
		t.Error("handler never ran")
	}
}

// A *schema.Error returned by a handler must arrive at the client
// with its code intact, wrapped or not.
func TestStructuredErrorRoundTrip(t *testing.T) {
	client := startServer(t, func(server *Server) {
		server.Handle("guarded", func(context.Context, []byte) (any, error) {
			return nil, schema.Forbidden("signal sig-x belongs to user/bob")
		})
	})

	err := client.Call(context.Background(), "guarded", nil, nil)
	if !schema.IsCode(err, schema.ErrCodeForbidden) {
		t.Fatalf("err = %v, want forbidden to survive the socket", err)
	}
}

func TestUnknownAction(t *testing.T) {
	client := startServer(t, func(*Server) {})

	err := client.Call(context.Background(), "nope", nil, nil)
	if err == nil {
		t.Fatal("unknown action succeeded")
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("err = %T %v, want *CallError", err, err)
	}
}
