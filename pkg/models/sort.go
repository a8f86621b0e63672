package models

import "sort"

// SortByUpdated orders artifacts most-recently-updated first. This is the
// order every adapter listing returns; it carries no pinned awareness.
func SortByUpdated(artifacts []*Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].UpdatedAt.After(artifacts[j].UpdatedAt)
	})
}

// SortPinnedFirst orders pinned artifacts before unpinned ones, and
// most-recently-updated first within each group. This is consumer-side
// display policy, deliberately kept out of the adapters.
func SortPinnedFirst(artifacts []*Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].Pinned != artifacts[j].Pinned {
			return artifacts[i].Pinned
		}
		return artifacts[i].UpdatedAt.After(artifacts[j].UpdatedAt)
	})
}

// SortEventsByStart orders calendar events by start time ascending.
func SortEventsByStart(events []*CalendarEventRecord) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
