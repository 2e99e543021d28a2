// Package discover lists the scan files in a folder in the order they were
// produced. Creation time drives the ordering where the platform records it,
// with modification time as the fallback.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotDirectory reports that the discovery target exists but is not a
// directory.
var ErrNotDirectory = errors.New("not a directory")

// Kind classifies a discovered file by how the pipeline will process it.
type Kind int

const (
	// KindImage files go through recognition.
	KindImage Kind = iota
	// KindDocument files already are PDF documents and pass through.
	KindDocument
)

func (k Kind) String() string {
	if k == KindDocument {
		return "document"
	}
	return "image"
}

// Item is one file selected for assembly.
type Item struct {
	Path    string
	Kind    Kind
	SortKey time.Time
}

var extensions = map[string]Kind{
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".bmp":  KindImage,
	".webp": KindImage,
	".pdf":  KindDocument,
}

// Folder lists the supported files directly inside dir, ordered by creation
// time ascending. Files the pipeline cannot process are skipped silently,
// as are subdirectories. Ties keep the directory listing's name order.
func Folder(dir string) ([]Item, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	items, err := collectItems(dir, entries)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortKey.Before(items[j].SortKey)
	})
	return items, nil
}

// collectItems filters entries to supported regular files and resolves their
// ordering keys. Stat errors propagate, a file vanishing mid-discovery
// included: dropping it silently would shorten the output without warning.
func collectItems(dir string, entries []os.DirEntry) ([]Item, error) {
	var items []Item
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		kind, ok := extensions[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		items = append(items, Item{Path: path, Kind: kind, SortKey: ResolveTimestamp(fi)})
	}
	return items, nil
}

// ResolveTimestamp returns the file's creation time when the platform
// exposes one and its modification time otherwise.
func ResolveTimestamp(fi fs.FileInfo) time.Time {
	if t, ok := birthTime(fi); ok {
		return t
	}
	return fi.ModTime()
}
