// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireQuiet] wrap the
// select-with-timeout safety valve so individual tests never call
// time.After directly. They are the only place in the test suite that
// uses real wall-clock timeouts; everything else drives time through
// lib/clock's FakeClock.
//
// All helpers call t.Fatalf on failure.
package testutil
