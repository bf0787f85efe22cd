package compare

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"
)

// TreeDiff is the three-way comparison of two result directories.
type TreeDiff struct {
	// Missing lists files present only in the reference (truth) tree.
	Missing []string `json:"missing,omitempty"`

	// Extra lists files present only in the candidate (question) tree.
	Extra []string `json:"extra,omitempty"`

	// Differ lists files present in both trees with different content.
	Differ []string `json:"differ,omitempty"`
}

// Empty reports whether the trees were equivalent.
func (d TreeDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Differ) == 0
}

// entry is one file or directory found in a tree.
type entry struct {
	dir  bool
	size int64
	path string
}

// Trees compares the file trees rooted at truth and question. Paths in the
// result are slash-separated and relative to the roots. A path that is a
// directory on one side and a file on the other is reported as differing.
func Trees(truth, question string) (TreeDiff, error) {
	left, err := listTree(truth)
	if err != nil {
		return TreeDiff{}, err
	}
	right, err := listTree(question)
	if err != nil {
		return TreeDiff{}, err
	}

	var diff TreeDiff
	for rel, l := range left {
		r, ok := right[rel]
		if !ok {
			diff.Missing = append(diff.Missing, rel)
			continue
		}
		if l.dir && r.dir {
			continue
		}
		same, err := sameContent(l, r)
		if err != nil {
			return TreeDiff{}, err
		}
		if !same {
			diff.Differ = append(diff.Differ, rel)
		}
	}
	for rel := range right {
		if _, ok := left[rel]; !ok {
			diff.Extra = append(diff.Extra, rel)
		}
	}

	sort.Strings(diff.Missing)
	sort.Strings(diff.Extra)
	sort.Strings(diff.Differ)
	return diff, nil
}

// listTree indexes every entry below root by relative path. A missing root
// is an empty tree.
func listTree(root string) (map[string]entry, error) {
	entries := make(map[string]entry)

	_, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat result tree: %w", err)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries[filepath.ToSlash(rel)] = entry{dir: d.IsDir(), size: info.Size(), path: path}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk result tree %s: %w", root, err)
	}
	return entries, nil
}

// sameContent compares two non-directory entries byte for byte, using a size
// check followed by a SHA-256 digest of each file.
func sameContent(a, b entry) (bool, error) {
	if a.dir != b.dir || a.size != b.size {
		return false, nil
	}
	da, err := fileDigest(a.path)
	if err != nil {
		return false, err
	}
	db, err := fileDigest(b.path)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

func fileDigest(path string) (digest.Digest, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", path, err)
		}
		return digest.FromString("symlink:" + target), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return d, nil
}
