package sei

import (
	"log/slog"
	"slices"
	"strings"

	"seiassist/lib/textutil"
)

func matchesMarkers(proc *Process, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, marker := range proc.Markers {
		if textutil.ContainsAny(marker, terms) {
			return true
		}
	}
	return false
}

func matchesAssignee(proc *Process, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	return textutil.ContainsAny(proc.AssigneeName, terms) ||
		textutil.ContainsAny(proc.AssigneeId, terms)
}

// ApplyFilters narrows a collected listing in memory, preserving
// order. The input slice is never mutated.
func ApplyFilters(processes []*Process, filters FilterOptions) []*Process {
	var out []*Process
	for _, proc := range processes {
		if len(filters.Categories) > 0 && !slices.Contains(filters.Categories, proc.Category) {
			continue
		}
		if filters.Seen != nil && proc.Seen != *filters.Seen {
			continue
		}
		if filters.HasNewDocuments != nil && proc.HasNewDocuments != *filters.HasNewDocuments {
			continue
		}
		if filters.HasAnnotations != nil && proc.HasAnnotations != *filters.HasAnnotations {
			continue
		}
		if !matchesAssignee(proc, filters.Assignees) {
			continue
		}
		if len(filters.Types) > 0 {
			haystack := strings.Join([]string{proc.TypeDetail, proc.Title}, "\n")
			if !textutil.ContainsAny(haystack, filters.Types) {
				continue
			}
		}
		if !matchesMarkers(proc, filters.Markers) {
			continue
		}
		out = append(out, proc)
	}

	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	} else if filters.Limit < 0 {
		slog.Warn("ignoring negative filter limit", "limit", filters.Limit)
	}
	return out
}
