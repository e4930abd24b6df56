// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses standard 5-field cron expressions and computes
// the next occurrence after a given time. The service uses it to
// schedule the presence sweep job.
//
//	┌───────────── minute (0-59)
//	│ ┌───────────── hour (0-23)
//	│ │ ┌───────────── day of month (1-31)
//	│ │ │ ┌───────────── month (1-12)
//	│ │ │ │ ┌───────────── day of week (0-6, 0=Sunday)
//	│ │ │ │ │
//	* * * * *
//
// Fields support single values, ranges (1-5), lists (1,3,5), steps
// (*/15, 1-30/5), and the wildcard. All times are UTC. No
// @hourly-style shortcuts and no seconds field.
package cron
