// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the Matrix access token outside the Go heap.
//
// [Buffer] allocates with mmap(MAP_ANONYMOUS), locks the pages with
// mlock so they are never swapped, and marks them MADV_DONTDUMP so they
// never appear in core dumps. Close zeros, unlocks, and unmaps the
// region. [ReadTokenFile] loads a token file straight into a Buffer and
// zeros the intermediate heap copy.
package secret
