// Package view holds the list/detail screen state and builds what it renders.
package view

import (
	"kitchenlog/internal/derive"
	"kitchenlog/internal/domain"
	"kitchenlog/internal/store"
)

// State is the ephemeral UI state of the kitchen list. The zero value is the
// state on mount. Only one incident can be expanded at a time.
type State struct {
	Query              string `json:"query" query:"q"`
	SelectedKitchenID  string `json:"selected_kitchen_id,omitempty" query:"selected"`
	ExpandedIncidentID string `json:"expanded_incident_id,omitempty" query:"expanded"`
}

func (s State) SetQuery(q string) State {
	s.Query = q
	return s
}

// Select picks a kitchen. The expanded incident is kept even when it belongs
// to another kitchen; it is simply not rendered.
func (s State) Select(kitchenID string) State {
	s.SelectedKitchenID = kitchenID
	return s
}

func (s State) ClearSelection() State {
	s.SelectedKitchenID = ""
	return s
}

// ToggleExpanded collapses incidentID if it is expanded, otherwise expands it
// and collapses whichever incident was expanded before.
func (s State) ToggleExpanded(incidentID string) State {
	if s.ExpandedIncidentID == incidentID {
		s.ExpandedIncidentID = ""
	} else {
		s.ExpandedIncidentID = incidentID
	}
	return s
}

type Row struct {
	derive.KitchenSummary
	Selected bool `json:"selected"`
}

type IncidentCard struct {
	Incident domain.Incident    `json:"incident"`
	Badge    derive.Badge       `json:"badge"`
	History  derive.HistoryView `json:"history"`
}

type Detail struct {
	Kitchen   domain.Kitchen `json:"kitchen"`
	Incidents []IncidentCard `json:"incidents"`
}

// List is everything the list screen shows for one snapshot and state.
type List struct {
	State  State   `json:"state"`
	Rows   []Row   `json:"rows"`
	Detail *Detail `json:"detail,omitempty"`
}

// Build derives the screen from scratch; nothing is cached between calls.
func Build(snap store.Snapshot, st State) List {
	filtered := derive.FilterKitchens(snap.Kitchens, st.Query)
	summaries := derive.Summaries(filtered, snap.Incidents)
	rows := make([]Row, len(summaries))
	for n, s := range summaries {
		rows[n] = Row{KitchenSummary: s, Selected: st.SelectedKitchenID != "" && s.Kitchen.ID == st.SelectedKitchenID}
	}
	out := List{State: st, Rows: rows}
	if st.SelectedKitchenID != "" {
		if d, ok := BuildDetail(snap, st.SelectedKitchenID, st.ExpandedIncidentID); ok {
			out.Detail = &d
		}
	}
	return out
}

// BuildDetail assembles the detail panel of one kitchen. It reports false when
// the kitchen does not exist.
func BuildDetail(snap store.Snapshot, kitchenID, expandedIncidentID string) (Detail, bool) {
	k, ok := derive.FindKitchen(snap.Kitchens, kitchenID)
	if !ok {
		return Detail{}, false
	}
	incidents := derive.SortIncidentsDesc(derive.IncidentsOf(snap.Incidents, kitchenID))
	cards := make([]IncidentCard, len(incidents))
	for n, inc := range incidents {
		cards[n] = IncidentCard{
			Incident: inc,
			Badge:    derive.StatusBadge(inc.Status),
			History:  derive.History(inc.History, inc.ID, expandedIncidentID),
		}
	}
	return Detail{Kitchen: k, Incidents: cards}, true
}
