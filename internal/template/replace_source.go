package template

import (
	"fmt"
	"sort"

	"github.com/evanw/packcore/internal/graph"
	"github.com/evanw/packcore/internal/helpers"
)

// Original text plus a set of non-overlapping patches. Each dependency owns
// a disjoint span of the source that was assigned when it was created, so an
// overlap always means there is a bug somewhere.
type ReplaceSource struct {
	original string
	patches  []patch
}

type patch struct {
	start   uint32
	end     uint32
	content string
}

func NewReplaceSource(original string) *ReplaceSource {
	return &ReplaceSource{original: original}
}

// Patches panic with this value when they overlap a previous patch
type OverlapError struct {
	Start         uint32
	End           uint32
	ExistingStart uint32
	ExistingEnd   uint32
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("patch [%d, %d) overlaps patch [%d, %d)", e.Start, e.End, e.ExistingStart, e.ExistingEnd)
}

// Replaces the half-open range [start, end)
func (s *ReplaceSource) Replace(start uint32, end uint32, content string) {
	s.add(patch{start: start, end: end, content: content})
}

func (s *ReplaceSource) Insert(pos uint32, content string) {
	s.add(patch{start: pos, end: pos, content: content})
}

func (s *ReplaceSource) add(p patch) {
	if p.start > p.end || int(p.end) > len(s.original) {
		panic(graph.InvariantError{Text: fmt.Sprintf("patch [%d, %d) is outside of a source of length %d", p.start, p.end, len(s.original))})
	}
	for _, existing := range s.patches {
		if overlaps(p, existing) {
			panic(&OverlapError{
				Start:         p.start,
				End:           p.end,
				ExistingStart: existing.start,
				ExistingEnd:   existing.end,
			})
		}
	}
	s.patches = append(s.patches, p)
}

// Inserts only conflict with a replacement that strictly contains them.
// Two inserts never conflict.
func overlaps(a patch, b patch) bool {
	if a.start == a.end && b.start == b.end {
		return false
	}
	if a.start == a.end {
		return b.start < a.start && a.start < b.end
	}
	if b.start == b.end {
		return a.start < b.start && b.start < a.end
	}
	return a.start < b.end && b.start < a.end
}

func (s *ReplaceSource) Original() string {
	return s.original
}

func (s *ReplaceSource) PatchCount() int {
	return len(s.patches)
}

// Applies the patches in ascending start order. At the same offset inserts
// come before replacements, and otherwise patches are applied in the order
// they were registered.
func (s *ReplaceSource) Source() string {
	if len(s.patches) == 0 {
		return s.original
	}
	sorted := append([]patch{}, s.patches...)
	sort.SliceStable(sorted, func(i int, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end < b.end
	})

	j := helpers.Joiner{}
	cursor := uint32(0)
	for _, p := range sorted {
		if p.start > cursor {
			j.AddString(s.original[cursor:p.start])
		}
		j.AddString(p.content)
		if p.end > cursor {
			cursor = p.end
		}
	}
	if int(cursor) < len(s.original) {
		j.AddString(s.original[cursor:])
	}
	return j.String()
}
