package model

import (
	"sort"
	"strings"
)

// SortOrder selects how filtered lists are ordered.
//
// Recent sorts by updatedAt descending, Oldest ascending. Any other value
// leaves the incoming order untouched (the sort is stable, the comparator
// reports everything equal).
type SortOrder string

const (
	SortRecent SortOrder = "recent"
	SortOldest SortOrder = "oldest"
	SortNone   SortOrder = ""
)

// Query describes a list view: a free-text query, the set of tags the user
// has selected, and a sort order.
//
// A leading '#' in Text switches the query into tag mode: "#wor" matches any
// record with a tag whose lowercased text contains "wor". Selected tags
// intersect: a record must carry every one of them.
type Query struct {
	Text string
	Tags []string
	Sort SortOrder
}

// FilterTasks returns the tasks matching q, sorted per q.Sort.
// The input slice is not modified.
func FilterTasks(tasks []Task, q Query) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(q, t.Title, "", t.Tags, true) {
			out = append(out, t)
		}
	}
	return sortTasks(out, q.Sort)
}

// FilterNotes returns the notes matching q, sorted per q.Sort.
// The input slice is not modified.
func FilterNotes(notes []Note, q Query) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if matches(q, n.Title, n.Content, n.Tags, false) {
			out = append(out, n)
		}
	}
	return sortNotes(out, q.Sort)
}

// matches applies the text query, the #tag query mode, and the selected-tag
// intersection. With textInTags set, a plain query also matches against the
// record's tags; task queries use this, note queries search only title and
// content.
func matches(q Query, title, content string, tags []string, textInTags bool) bool {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	if strings.HasPrefix(text, "#") {
		tagQuery := strings.TrimPrefix(text, "#")
		if tagQuery != "" && !anyTagContains(tags, tagQuery) {
			return false
		}
	} else if text != "" {
		if !strings.Contains(strings.ToLower(title), text) &&
			!strings.Contains(strings.ToLower(content), text) &&
			!(textInTags && anyTagContains(tags, text)) {
			return false
		}
	}

	for _, want := range q.Tags {
		if !hasTag(tags, want) {
			return false
		}
	}
	return true
}

func anyTagContains(tags []string, sub string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), sub) {
			return true
		}
	}
	return false
}

func sortTasks(tasks []Task, order SortOrder) []Task {
	switch order {
	case SortRecent:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		})
	case SortOldest:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].UpdatedAt.Before(tasks[j].UpdatedAt)
		})
	}
	return tasks
}

func sortNotes(notes []Note, order SortOrder) []Note {
	switch order {
	case SortRecent:
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		})
	case SortOldest:
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].UpdatedAt.Before(notes[j].UpdatedAt)
		})
	}
	return notes
}
