// Package findreplace replaces literal text within single text leaves.
//
// A match split across two leaves (for example across a bold run) is not
// found.
package findreplace

import (
	"fmt"
	"strings"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/document"
)

// Count returns how many non-overlapping occurrences of find ReplaceAll
// would replace.
func Count(doc *document.Document, find string) (int, error) {
	if find == "" {
		return 0, fmt.Errorf("findreplace: %w", apperr.ErrEmptyFindTerm)
	}
	n := 0
	for _, leaf := range doc.TextLeaves() {
		n += strings.Count(leaf.Text, find)
	}
	return n, nil
}

// ReplaceAll replaces every non-overlapping occurrence of find, scanning each
// leaf left to right, and returns the number replaced. With no matches the
// document is left untouched and listeners are not notified.
func ReplaceAll(doc *document.Document, find, replace string) (int, error) {
	total, err := Count(doc, find)
	if err != nil || total == 0 {
		return 0, err
	}
	for _, leaf := range doc.TextLeaves() {
		if strings.Contains(leaf.Text, find) {
			leaf.SetText(strings.ReplaceAll(leaf.Text, find, replace))
		}
	}
	// Offsets into rewritten leaves no longer mean anything.
	doc.ClearSelection()
	doc.Normalize()
	doc.NotifyChanged()
	return total, nil
}
