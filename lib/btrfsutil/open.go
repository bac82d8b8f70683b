// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsutil

import (
	"context"
	"fmt"
	"os"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/diskio"
)

// OpenPathWalker opens imgPath read-only, bootstraps the filesystem,
// locates the default filesystem tree (FS_TREE_OBJECTID, spec.md
// §4.F), and returns a PathWalker ready to enumerate it. It never
// mounts the image or requires it to be unmounted from any other
// process's point of view (spec.md §1).
func OpenPathWalker(ctx context.Context, imgPath string) (*PathWalker, error) {
	osFile, err := os.Open(imgPath)
	if err != nil {
		return nil, err
	}
	file := &diskio.OSFile[btrfsvol.PhysicalAddr]{File: osFile}

	fs, err := btrfs.Open(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgPath, err)
	}

	rootAddr, rootDirID, err := fs.FindRoot(btrfsprim.FS_TREE_OBJECTID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgPath, err)
	}

	w, err := NewPathWalker(fs, rootAddr, rootDirID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgPath, err)
	}
	return w, nil
}
