// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Mapping is one entry of a ChunkMap: the logical interval
// [Logical, Logical+Size) is mapped onto physical bytes starting at
// Physical. Only the first stripe of a chunk is ever recorded here;
// this system honors single-device, single-stripe chunks only (see
// spec.md §1's Non-goals re: RAID).
type Mapping struct {
	Logical  LogicalAddr
	Size     AddrDelta
	Physical PhysicalAddr
}

func (m Mapping) contains(la LogicalAddr) bool {
	return m.Logical <= la && la < m.Logical.Add(m.Size)
}

// ChunkMap is the address-translation cache of spec.md §4.B: an
// ordered map from non-overlapping logical intervals to physical
// offsets. It is built up once (bootstrap, then the chunk-tree walk)
// and is read-only thereafter.
type ChunkMap struct {
	// kept sorted by Logical; insertion is infrequent (bounded by
	// the number of chunks in the filesystem) so a linear
	// binary-search-insert is simpler than a balanced tree and
	// plenty fast.
	entries []Mapping
}

// Insert adds a mapping. A later Insert for a Logical start address
// that's already present is ignored (first-wins), so that bootstrap
// entries survive the chunk-tree walk finding the same chunk again.
func (m *ChunkMap) Insert(mapping Mapping) {
	i, found := slices.BinarySearchFunc(m.entries, mapping, func(a, b Mapping) int {
		switch {
		case a.Logical < b.Logical:
			return -1
		case a.Logical > b.Logical:
			return 1
		default:
			return 0
		}
	})
	if found {
		return // first-wins
	}
	m.entries = slices.Insert(m.entries, i, mapping)
}

// Lookup returns the mapping entry containing la, if any: the entry
// with the greatest Logical <= la such that la also falls within its
// Size.
func (m *ChunkMap) Lookup(la LogicalAddr) (Mapping, bool) {
	i, found := slices.BinarySearchFunc(m.entries, Mapping{Logical: la}, func(a, b Mapping) int {
		switch {
		case a.Logical < b.Logical:
			return -1
		case a.Logical > b.Logical:
			return 1
		default:
			return 0
		}
	})
	if found {
		return m.entries[i], true
	}
	if i == 0 {
		return Mapping{}, false
	}
	candidate := m.entries[i-1]
	if !candidate.contains(la) {
		return Mapping{}, false
	}
	return candidate, true
}

// Physical translates a logical address to a physical offset,
// returning false if no chunk covers it (spec.md §7's "Integrity"
// error case: a tree pointer with no chunk-map entry).
func (m *ChunkMap) Physical(la LogicalAddr) (PhysicalAddr, bool) {
	e, ok := m.Lookup(la)
	if !ok {
		return 0, false
	}
	return e.Physical.Add(la.Sub(e.Logical)), true
}

// CheckNonOverlapping validates the invariant of spec.md §4.B: no two
// entries' logical intervals overlap. It's exercised by tests; the
// insertion order this program uses (bootstrap then chunk-tree walk,
// both first-wins on duplicate starts) never produces an overlap from
// a well-formed image, so production code does not call this on the
// hot path.
func (m *ChunkMap) CheckNonOverlapping() error {
	for i := 1; i < len(m.entries); i++ {
		prev, cur := m.entries[i-1], m.entries[i]
		if prev.Logical.Add(prev.Size) > cur.Logical {
			return fmt.Errorf("chunk map entries overlap: [%v,%v) and [%v,%v)",
				prev.Logical, prev.Logical.Add(prev.Size),
				cur.Logical, cur.Logical.Add(cur.Size))
		}
	}
	return nil
}
