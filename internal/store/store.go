// Package store owns the kitchen and incident collections in memory. It
// assigns ids and hands out snapshots; nothing is written to disk.
package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"kitchenlog/internal/config"
	"kitchenlog/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Snapshot is one consistent, immutable view of both collections.
type Snapshot struct {
	Kitchens  []domain.Kitchen  `yaml:"kitchens" json:"kitchens"`
	Incidents []domain.Incident `yaml:"incidents" json:"incidents"`
}

type Store struct {
	mu        sync.RWMutex
	kitchens  []domain.Kitchen
	incidents []domain.Incident
	NewID     func() string
	Now       func() time.Time
}

func New() *Store {
	return &Store{NewID: uuid.NewString, Now: time.Now}
}

// Seed replaces the store contents with snap.
func (s *Store) Seed(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kitchens = append([]domain.Kitchen(nil), snap.Kitchens...)
	s.incidents = cloneIncidents(snap.Incidents)
}

// Snapshot returns a deep copy of the current collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Kitchens:  append([]domain.Kitchen{}, s.kitchens...),
		Incidents: cloneIncidents(s.incidents),
	}
}

// AddKitchen assigns an id to d and appends it.
func (s *Store) AddKitchen(d domain.KitchenDraft) domain.Kitchen {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := d.WithID(s.newID())
	s.kitchens = append(s.kitchens, k)
	return k
}

func (s *Store) GetKitchen(id string) (domain.Kitchen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.kitchens {
		if k.ID == id {
			return k, nil
		}
	}
	return domain.Kitchen{}, fmt.Errorf("kitchen %s: %w", id, ErrNotFound)
}

// IncidentInput is a new incident before the store assigns id and createdAt.
type IncidentInput struct {
	KitchenID   string
	Cause       domain.IncidentCause
	Description string
	Status      domain.TaskStatus
	Note        string
}

// AddIncident opens an incident against an existing kitchen. A non-empty Note
// becomes the first history entry.
func (s *Store) AddIncident(in IncidentInput) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasKitchen(in.KitchenID) {
		return domain.Incident{}, fmt.Errorf("kitchen %s: %w", in.KitchenID, ErrNotFound)
	}
	now := s.now().UTC().Format(time.RFC3339)
	inc := domain.Incident{
		ID:          s.newID(),
		KitchenID:   in.KitchenID,
		Cause:       in.Cause,
		Description: in.Description,
		Status:      in.Status,
		CreatedAt:   now,
		History:     []domain.HistoryEntry{},
	}
	if in.Note != "" {
		inc.History = append(inc.History, domain.HistoryEntry{Date: &now, StatusAtTime: in.Status, Text: in.Note})
	}
	s.incidents = append(s.incidents, inc)
	return inc.Clone(), nil
}

// AppendNote appends a history entry to an incident and moves the incident to
// status, which is also recorded on the entry.
func (s *Store) AppendNote(incidentID string, status domain.TaskStatus, text string) (domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.incidents {
		inc := &s.incidents[n]
		if inc.ID != incidentID {
			continue
		}
		now := s.now().UTC().Format(time.RFC3339)
		inc.Status = status
		inc.History = append(inc.History, domain.HistoryEntry{Date: &now, StatusAtTime: status, Text: text})
		return inc.Clone(), nil
	}
	return domain.Incident{}, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
}

func (s *Store) hasKitchen(id string) bool {
	for _, k := range s.kitchens {
		if k.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cloneIncidents(in []domain.Incident) []domain.Incident {
	out := make([]domain.Incident, len(in))
	for n, i := range in {
		out[n] = i.Clone()
	}
	return out
}

// LoadSnapshot reads a YAML snapshot file and checks it against cfg.
func LoadSnapshot(path string, cfg *config.Config) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return ParseSnapshot(data, cfg)
}

// ParseSnapshot decodes YAML (JSON is accepted too) and validates references
// and enumerated values.
func ParseSnapshot(data []byte, cfg *config.Config) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	if err := snap.Validate(cfg); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Validate ensures ids are present and unique, incidents reference known
// kitchens, and causes and statuses are configured members.
func (s Snapshot) Validate(cfg *config.Config) error {
	var problems []string
	kitchens := make(map[string]struct{}, len(s.Kitchens))
	for n, k := range s.Kitchens {
		if k.ID == "" {
			problems = append(problems, fmt.Sprintf("kitchens[%d]: id is required", n))
			continue
		}
		if _, dup := kitchens[k.ID]; dup {
			problems = append(problems, fmt.Sprintf("kitchens[%d]: duplicate id %s", n, k.ID))
		}
		kitchens[k.ID] = struct{}{}
	}
	incidents := make(map[string]struct{}, len(s.Incidents))
	for n, i := range s.Incidents {
		if i.ID == "" {
			problems = append(problems, fmt.Sprintf("incidents[%d]: id is required", n))
		} else if _, dup := incidents[i.ID]; dup {
			problems = append(problems, fmt.Sprintf("incidents[%d]: duplicate id %s", n, i.ID))
		}
		incidents[i.ID] = struct{}{}
		if _, ok := kitchens[i.KitchenID]; !ok {
			problems = append(problems, fmt.Sprintf("incidents[%d]: unknown kitchen %s", n, i.KitchenID))
		}
		if cfg == nil {
			continue
		}
		if !cfg.HasCause(i.Cause) {
			problems = append(problems, fmt.Sprintf("incidents[%d]: unknown cause %s", n, i.Cause))
		}
		if !cfg.HasStatus(i.Status) {
			problems = append(problems, fmt.Sprintf("incidents[%d]: unknown status %s", n, i.Status))
		}
		for h, e := range i.History {
			if !cfg.HasStatus(e.StatusAtTime) {
				problems = append(problems, fmt.Sprintf("incidents[%d].history[%d]: unknown status %s", n, h, e.StatusAtTime))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid snapshot: %s", strings.Join(problems, "; "))
	}
	return nil
}
