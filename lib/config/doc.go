// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Babble service configuration from a single
// YAML file named by the BABBLE_CONFIG environment variable or the
// --config flag. There is no automatic discovery and environment
// variables do not override file values: configuration is
// deterministic and auditable. The file may contain development and
// production sections that override base values when the environment
// matches.
package config
