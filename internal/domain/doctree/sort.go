package doctree

import (
	"sort"
	"strings"
)

// SortOrder names a listing order
type SortOrder string

const (
	SortByName     SortOrder = "name"
	SortBySize     SortOrder = "size"
	SortByModified SortOrder = "modified"
)

// ParseSortOrder maps a preference value to a SortOrder, defaulting to name
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(s)) {
	case SortBySize:
		return SortBySize
	case SortByModified:
		return SortByModified
	}
	return SortByName
}

// SortDocuments orders docs in place: directories first, then by order, with
// case-insensitive name as the tie breaker.
func SortDocuments(docs []Document, order SortOrder) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		switch order {
		case SortBySize:
			if a.Size != b.Size {
				return a.Size > b.Size
			}
		case SortByModified:
			if !a.Modified.Equal(b.Modified) {
				return a.Modified.After(b.Modified)
			}
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.Name < b.Name
	})
}

// FilterHidden drops dot files unless show is set
func FilterHidden(docs []Document, show bool) []Document {
	if show {
		return docs
	}
	out := docs[:0]
	for _, d := range docs {
		if !d.Hidden {
			out = append(out, d)
		}
	}
	return out
}
