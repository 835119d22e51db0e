// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package metrics provides internal metrics collection.
// Components receive a Recorder at construction time; nothing in the
// module reads process-wide mutable counters.
package metrics
