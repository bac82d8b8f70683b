// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsutil

import (
	"fmt"
	"path"
	"unicode/utf8"

	"github.com/datawire/dlib/derror"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsitem"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsprim"
	"github.com/btrfs-tools/btrfs-pathwalk/lib/btrfs/btrfsvol"
)

// pathCacheSize bounds the memoized inode->path resolutions (spec.md
// §4.G notes an implementation "MAY cache" these; deep, heavily
// shared directory trees are the case this actually matters for).
const pathCacheSize = 4096

// PathWalker reconstructs absolute paths within one filesystem tree.
type PathWalker struct {
	fs      *btrfs.FS
	root    btrfsvol.LogicalAddr
	rootDir btrfsprim.ObjID
	cache   *lru.Cache[btrfsprim.ObjID, string]
}

// NewPathWalker prepares a walker over the tree rooted at treeRoot,
// whose self-parent directory inode is rootDir (spec.md §4.F: taken
// from the ROOT_ITEM's root_dirid field, not hardcoded).
func NewPathWalker(fs *btrfs.FS, treeRoot btrfsvol.LogicalAddr, rootDir btrfsprim.ObjID) (*PathWalker, error) {
	cache, err := lru.New[btrfsprim.ObjID, string](pathCacheSize)
	if err != nil {
		return nil, err
	}
	return &PathWalker{fs: fs, root: treeRoot, rootDir: rootDir, cache: cache}, nil
}

// DirPath resolves the absolute path of directory inode ino by
// walking INODE_REF entries up to the tree's root directory (spec.md
// §4.G). The ROOT_ITEM's root_dirid is checked first and resolves to
// "/". A self-referential INODE_REF (key.offset == the inode itself)
// is a second, independent termination: that inode also resolves to
// "/" and the recursion stops there.
func (w *PathWalker) DirPath(ino btrfsprim.ObjID) (string, error) {
	if ino == w.rootDir {
		return "/", nil
	}
	if cached, ok := w.cache.Get(ino); ok {
		return cached, nil
	}

	key, body, ok, err := searchItem(w.fs, w.root, ino, btrfsprim.INODE_REF_KEY)
	if err != nil {
		return "", fmt.Errorf("resolving path of inode %v: %w", ino, err)
	}
	if !ok {
		return "", fmt.Errorf("resolving path of inode %v: no INODE_REF", ino)
	}
	ref, ok := body.(btrfsitem.InodeRef)
	if !ok {
		return "", fmt.Errorf("resolving path of inode %v: %w", ino, body.(btrfsitem.Error).Err)
	}
	if !utf8.Valid(ref.Name) {
		return "", fmt.Errorf("resolving path of inode %v: name is not valid UTF-8", ino)
	}
	parent := btrfsprim.ObjID(key.Offset)

	if parent == ino {
		// Self-parent below the declared root directory: treat it as
		// the root rather than recursing forever.
		w.cache.Add(ino, "/")
		return "/", nil
	}
	parentPath, err := w.DirPath(parent)
	if err != nil {
		return "", err
	}

	full := path.Join(parentPath, string(ref.Name))
	w.cache.Add(ino, full)
	return full, nil
}

// WalkFiles calls fn once for every regular file reachable through a
// DIR_ITEM entry in the tree, in the order they're encountered during
// the tree walk, with its fully reconstructed absolute path.
// Directories, symlinks, and every other entry type named in spec.md
// §4.G are silently skipped.
//
// A single directory entry that fails to decode, whose name isn't
// valid UTF-8, or whose path can't be resolved does not abort the walk: per spec.md §7, that's a per-item
// diagnostic, not an integrity failure of the tree itself. These are
// collected into a derror.MultiError and returned once the walk
// finishes, after fn has already been called for every file that did
// resolve cleanly. An error from fn itself, or from reading the tree
// structure, aborts the walk immediately.
func (w *PathWalker) WalkFiles(fn func(absPath string) error) error {
	var problems derror.MultiError
	err := w.fs.WalkTree(w.root, func(key btrfsprim.Key, body btrfsitem.Item) error {
		// DIR_INDEX duplicates DIR_ITEM's (name -> inode) link for
		// readdir ordering; walking DIR_ITEM alone visits every
		// link exactly once.
		if key.ItemType != btrfsprim.DIR_ITEM_KEY {
			return nil
		}
		entry, ok := body.(btrfsitem.DirEntry)
		if !ok {
			// An entry that fails to decode (e.g. name_len overrunning
			// the item) is reported, not silently dropped.
			problems = append(problems, fmt.Errorf("directory entry %v: %w", key, body.(btrfsitem.Error).Err))
			return nil
		}
		if entry.Type != btrfsitem.FT_REG_FILE {
			return nil
		}

		if !utf8.Valid(entry.Name) {
			problems = append(problems, fmt.Errorf("directory entry %v: name is not valid UTF-8", key))
			return nil
		}
		dirPath, err := w.DirPath(key.ObjectID)
		if err != nil {
			problems = append(problems, err)
			return nil
		}
		return fn(path.Join(dirPath, string(entry.Name)))
	})
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return problems
	}
	return nil
}
