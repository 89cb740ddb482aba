// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that schedule work (the aggregator's page continuation
// timer, the Matrix source's history window) take a [Clock] instead of
// calling the time package. Production wiring passes [Real]; tests pass
// a [FakeClock] from [Fake], which stands still until Advance is called
// and fires AfterFunc callbacks synchronously inside Advance.
package clock
