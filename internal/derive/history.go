package derive

import (
	"strings"
	"time"

	"kitchenlog/internal/domain"
)

// HistoryView is what the detail panel shows of an incident's notes.
type HistoryView struct {
	Entries []domain.HistoryEntry `json:"entries"`
	// Empty is set when the incident has no notes at all.
	Empty bool `json:"empty"`
	// Expanded is set when every note is shown.
	Expanded bool `json:"expanded"`
	// Earlier is the number of notes before the latest one.
	Earlier int `json:"earlier"`
	// Toggleable is set when expanding would show more than the latest note.
	Toggleable bool `json:"toggleable"`
}

// History returns the notes of incidentID to display. Only the incident whose
// id equals expandedID shows its full history; every other incident shows its
// latest note.
func History(entries []domain.HistoryEntry, incidentID, expandedID string) HistoryView {
	if len(entries) == 0 {
		return HistoryView{Entries: []domain.HistoryEntry{}, Empty: true}
	}
	v := HistoryView{
		Earlier:    len(entries) - 1,
		Toggleable: len(entries) > 1,
		Expanded:   expandedID != "" && incidentID == expandedID,
	}
	if v.Expanded {
		v.Entries = append([]domain.HistoryEntry(nil), entries...)
	} else {
		v.Entries = []domain.HistoryEntry{entries[len(entries)-1]}
	}
	return v
}

// Latest returns the last appended note.
func Latest(entries []domain.HistoryEntry) (domain.HistoryEntry, bool) {
	if len(entries) == 0 {
		return domain.HistoryEntry{}, false
	}
	return entries[len(entries)-1], true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the date strings used for createdAt and note dates.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

type DateState int

const (
	DateKnown DateState = iota
	DateAbsent
	DateMalformed
)

// EntryDate resolves an optional note date.
func EntryDate(date *string) (time.Time, DateState) {
	if date == nil {
		return time.Time{}, DateAbsent
	}
	ts, ok := ParseTimestamp(*date)
	if !ok {
		return time.Time{}, DateMalformed
	}
	return ts, DateKnown
}

const UnknownDate = "unknown date"

// DateLabel formats a note date for display. Absent and malformed dates both
// read as UnknownDate.
func DateLabel(date *string, loc *time.Location) string {
	ts, state := EntryDate(date)
	if state != DateKnown {
		return UnknownDate
	}
	if loc != nil {
		ts = ts.In(loc)
	}
	return ts.Format("2006-01-02 15:04")
}
