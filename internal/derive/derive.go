// Package derive computes the read-only projections shown by the list and
// detail views. Every function is pure: inputs are never modified and the
// same inputs always give the same output.
package derive

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kitchenlog/internal/domain"
)

// MinQueryLength is the trimmed query length at which searching starts.
const MinQueryLength = 2

// FilterKitchens returns the kitchens whose order number, client name, seller,
// installer or LDAP contain query, ignoring case. Queries shorter than
// MinQueryLength after trimming return kitchens unchanged.
func FilterKitchens(kitchens []domain.Kitchen, query string) []domain.Kitchen {
	if !SearchActive(query) {
		return kitchens
	}
	lower := cases.Lower(language.Und)
	q := lower.String(query)
	res := make([]domain.Kitchen, 0, len(kitchens))
	for _, k := range kitchens {
		if matches(lower, k, q) {
			res = append(res, k)
		}
	}
	return res
}

// SearchActive reports whether query is long enough to filter.
func SearchActive(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) >= MinQueryLength
}

func matches(lower cases.Caser, k domain.Kitchen, q string) bool {
	for _, field := range []string{k.OrderNumber, k.ClientName, k.Seller, k.Installer, k.LDAP} {
		if strings.Contains(lower.String(field), q) {
			return true
		}
	}
	return false
}

// FindKitchen looks a kitchen up by id.
func FindKitchen(kitchens []domain.Kitchen, id string) (domain.Kitchen, bool) {
	for _, k := range kitchens {
		if k.ID == id {
			return k, true
		}
	}
	return domain.Kitchen{}, false
}

// IncidentsOf returns the incidents opened against kitchenID, in input order.
func IncidentsOf(incidents []domain.Incident, kitchenID string) []domain.Incident {
	res := []domain.Incident{}
	for _, i := range incidents {
		if i.KitchenID == kitchenID {
			res = append(res, i)
		}
	}
	return res
}

// ActiveIncidentCount counts the kitchen's incidents that are not completed.
func ActiveIncidentCount(incidents []domain.Incident, kitchenID string) int {
	n := 0
	for _, i := range incidents {
		if i.KitchenID == kitchenID && i.Status.IsActive() {
			n++
		}
	}
	return n
}

// SortIncidentsDesc returns a copy ordered by CreatedAt, most recent first.
// Equal timestamps keep their input order; incidents whose CreatedAt cannot be
// parsed go last.
func SortIncidentsDesc(incidents []domain.Incident) []domain.Incident {
	type keyed struct {
		inc domain.Incident
		ts  time.Time
		ok  bool
	}
	items := make([]keyed, len(incidents))
	for n, i := range incidents {
		ts, ok := ParseTimestamp(i.CreatedAt)
		items[n] = keyed{inc: i, ts: ts, ok: ok}
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ok != items[b].ok {
			return items[a].ok
		}
		return items[a].ts.After(items[b].ts)
	})
	res := make([]domain.Incident, len(items))
	for n, it := range items {
		res[n] = it.inc
	}
	return res
}

// KitchenSummary is one row of the kitchen table with its quality badges.
type KitchenSummary struct {
	Kitchen        domain.Kitchen `json:"kitchen"`
	Incidents      int            `json:"incidents"`
	Active         int            `json:"active"`
	NeedsAttention bool           `json:"needs_attention"`
}

// Summaries computes the badge counts for each kitchen, in kitchen order.
func Summaries(kitchens []domain.Kitchen, incidents []domain.Incident) []KitchenSummary {
	total := make(map[string]int, len(kitchens))
	active := make(map[string]int, len(kitchens))
	for _, i := range incidents {
		total[i.KitchenID]++
		if i.Status.IsActive() {
			active[i.KitchenID]++
		}
	}
	res := make([]KitchenSummary, len(kitchens))
	for n, k := range kitchens {
		res[n] = KitchenSummary{
			Kitchen:        k,
			Incidents:      total[k.ID],
			Active:         active[k.ID],
			NeedsAttention: active[k.ID] > 0,
		}
	}
	return res
}

type Badge string

const (
	BadgeCompleted Badge = "completed"
	BadgeActive    Badge = "active"
)

// StatusBadge picks the badge tone for an incident status.
func StatusBadge(s domain.TaskStatus) Badge {
	if s.IsCompleted() {
		return BadgeCompleted
	}
	return BadgeActive
}
