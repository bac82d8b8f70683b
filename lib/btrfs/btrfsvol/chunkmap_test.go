// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

func TestChunkMapLookup(t *testing.T) {
	t.Parallel()

	var m btrfsvol.ChunkMap
	m.Insert(btrfsvol.Mapping{Logical: 0x1000, Size: 0x1000, Physical: 0x10000})
	m.Insert(btrfsvol.Mapping{Logical: 0x5000, Size: 0x2000, Physical: 0x20000})

	type TestCase struct {
		Input       btrfsvol.LogicalAddr
		OutputPhys  btrfsvol.PhysicalAddr
		OutputFound bool
	}
	testcases := map[string]TestCase{
		"start-of-first":  {Input: 0x1000, OutputPhys: 0x10000, OutputFound: true},
		"mid-of-first":    {Input: 0x1800, OutputPhys: 0x10800, OutputFound: true},
		"end-of-first":    {Input: 0x1fff, OutputPhys: 0x10fff, OutputFound: true},
		"gap-before-both": {Input: 0x0, OutputFound: false},
		"gap-between":     {Input: 0x2000, OutputFound: false},
		"start-of-second": {Input: 0x5000, OutputPhys: 0x20000, OutputFound: true},
		"mid-of-second":   {Input: 0x6000, OutputPhys: 0x21000, OutputFound: true},
		"past-end":        {Input: 0x7000, OutputFound: false},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			phys, ok := m.Physical(tc.Input)
			assert.Equal(t, tc.OutputFound, ok)
			if tc.OutputFound {
				assert.Equal(t, tc.OutputPhys, phys)
			}
		})
	}
}

func TestChunkMapInsertFirstWins(t *testing.T) {
	t.Parallel()

	var m btrfsvol.ChunkMap
	m.Insert(btrfsvol.Mapping{Logical: 0x1000, Size: 0x1000, Physical: 0x10000})
	m.Insert(btrfsvol.Mapping{Logical: 0x1000, Size: 0x1000, Physical: 0x99999})

	phys, ok := m.Physical(0x1000)
	require.True(t, ok)
	assert.Equal(t, btrfsvol.PhysicalAddr(0x10000), phys)
}

func TestChunkMapNonOverlapping(t *testing.T) {
	t.Parallel()

	var good btrfsvol.ChunkMap
	good.Insert(btrfsvol.Mapping{Logical: 0x1000, Size: 0x1000, Physical: 0x10000})
	good.Insert(btrfsvol.Mapping{Logical: 0x2000, Size: 0x1000, Physical: 0x20000})
	assert.NoError(t, good.CheckNonOverlapping())

	var bad btrfsvol.ChunkMap
	bad.Insert(btrfsvol.Mapping{Logical: 0x1000, Size: 0x2000, Physical: 0x10000})
	bad.Insert(btrfsvol.Mapping{Logical: 0x2000, Size: 0x1000, Physical: 0x20000})
	assert.Error(t, bad.CheckNonOverlapping())
}
