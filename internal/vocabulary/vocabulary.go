// Package vocabulary loads the set of category labels accepted at
// registration.
//
// The set is read once from the games dataset (a CSV file with a
// "categories" column) and is read-only afterwards. A missing or broken
// dataset is not fatal: the vocabulary is simply empty, and callers treat
// an empty vocabulary as "no restriction".
package vocabulary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

const categoriesColumn = "categories"

// Vocabulary is an immutable set of category labels.
type Vocabulary struct {
	labels map[string]struct{}
	sorted []string
}

// New builds a vocabulary from labels. Used by tests and by Load.
func New(labels ...string) *Vocabulary {
	v := &Vocabulary{labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		v.labels[l] = struct{}{}
	}
	v.sorted = make([]string, 0, len(v.labels))
	for l := range v.labels {
		v.sorted = append(v.sorted, l)
	}
	sort.Strings(v.sorted)
	return v
}

// Load reads the dataset at path. Errors are logged and produce an empty
// vocabulary; Load never fails.
func Load(path string, logger *slog.Logger) *Vocabulary {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("category dataset unavailable, category validation disabled",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return New()
	}
	defer f.Close()

	labels, err := Parse(f)
	if err != nil {
		logger.Warn("category dataset unreadable, category validation disabled",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return New()
	}

	v := New(labels...)
	logger.Info("category vocabulary loaded",
		slog.String("path", path),
		slog.Int("categories", v.Len()),
	)
	return v
}

// Parse extracts the distinct category labels from CSV data.
func Parse(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows in the dataset are ragged
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("vocabulary: dataset is empty")
		}
		return nil, fmt.Errorf("vocabulary: reading header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), categoriesColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errors.New("vocabulary: no categories column")
	}

	seen := make(map[string]struct{})
	var labels []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vocabulary: line %d: %w", line, err)
		}
		if col >= len(rec) {
			continue
		}
		for _, tok := range strings.Split(rec[col], ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" || strings.EqualFold(tok, "nan") {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			labels = append(labels, tok)
		}
	}
	return labels, nil
}

// Contains reports whether label is a known category.
func (v *Vocabulary) Contains(label string) bool {
	_, ok := v.labels[label]
	return ok
}

// All returns the labels in sorted order. The slice is a copy.
func (v *Vocabulary) All() []string {
	out := make([]string, len(v.sorted))
	copy(out, v.sorted)
	return out
}

// Len returns the number of labels. Zero means validation is skipped.
func (v *Vocabulary) Len() int {
	return len(v.labels)
}
