package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kitchenlog/internal/config"
	"kitchenlog/internal/domain"
)

const snapshotYAML = `kitchens:
  - id: k1
    ldap: LDAP1
    order_number: "80112233"
    client_name: Juan Perez
    seller: Lara
    installer: Instalador A
    installation_date: "2024-01-15"
incidents:
  - id: i1
    kitchen_id: k1
    cause: MISSING_PARTS
    description: Falta un tirador
    status: IN_PROGRESS
    created_at: "2024-01-20T10:00:00Z"
    history:
      - date: "2024-01-20T10:00:00Z"
        status_at_time: PENDING
        text: Pedido el repuesto
      - status_at_time: IN_PROGRESS
        text: Sin fecha
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	n := 0
	s.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	s.Now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(snapshotYAML), config.Default())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Kitchens) != 1 || snap.Kitchens[0].OrderNumber != "80112233" {
		t.Fatalf("kitchens %+v", snap.Kitchens)
	}
	h := snap.Incidents[0].History
	if len(h) != 2 || h[0].Date == nil || *h[0].Date != "2024-01-20T10:00:00Z" || h[1].Date != nil {
		t.Fatalf("history %+v", h)
	}
}

func TestParseSnapshotRejectsBadReferences(t *testing.T) {
	raw := strings.Replace(snapshotYAML, "kitchen_id: k1", "kitchen_id: k9", 1)
	raw = strings.Replace(raw, "cause: MISSING_PARTS", "cause: ALIENS", 1)
	_, err := ParseSnapshot([]byte(raw), config.Default())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"unknown kitchen k9", "unknown cause ALIENS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yml")
	if err := os.WriteFile(path, []byte(snapshotYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := LoadSnapshot(path, config.Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Incidents) != 1 {
		t.Fatalf("incidents %d", len(snap.Incidents))
	}
}

func TestAddKitchenAssignsIDs(t *testing.T) {
	s := newTestStore(t)
	d := domain.KitchenDraft{LDAP: "L", OrderNumber: "1", ClientName: "C", Seller: "Lara", Installer: "Instalador A", InstallationDate: "2024-01-15"}
	a := s.AddKitchen(d)
	b := s.AddKitchen(d)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids %q %q", a.ID, b.ID)
	}
	if a.Draft() != d {
		t.Fatalf("fields changed: %+v", a)
	}
	if got := s.Snapshot().Kitchens; len(got) != 2 || got[1].ID != b.ID {
		t.Fatalf("snapshot %+v", got)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := newTestStore(t)
	snap, err := ParseSnapshot([]byte(snapshotYAML), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	s.Seed(snap)
	first := s.Snapshot()
	first.Incidents[0].History[0].Text = "mutated"
	*first.Incidents[0].History[0].Date = "1999-01-01"
	second := s.Snapshot()
	if second.Incidents[0].History[0].Text != "Pedido el repuesto" || *second.Incidents[0].History[0].Date != "2024-01-20T10:00:00Z" {
		t.Fatalf("snapshot shares memory with store: %+v", second.Incidents[0].History[0])
	}
	if _, err := s.AppendNote("i1", domain.TaskStatusCompleted, "cerrado"); err != nil {
		t.Fatal(err)
	}
	if len(second.Incidents[0].History) != 2 {
		t.Fatal("earlier snapshot changed after append")
	}
}

func TestAddIncidentAndAppendNote(t *testing.T) {
	s := newTestStore(t)
	k := s.AddKitchen(domain.KitchenDraft{LDAP: "L", OrderNumber: "1", ClientName: "C", Seller: "Lara", Installer: "Instalador A", InstallationDate: "2024-01-15"})
	inc, err := s.AddIncident(IncidentInput{KitchenID: k.ID, Cause: domain.CauseDamagedMaterial, Description: "golpe", Status: domain.TaskStatusPending, Note: "abierto"})
	if err != nil {
		t.Fatalf("add incident: %v", err)
	}
	if inc.CreatedAt != "2024-02-01T12:00:00Z" || len(inc.History) != 1 || inc.History[0].StatusAtTime != domain.TaskStatusPending {
		t.Fatalf("incident %+v", inc)
	}
	inc, err = s.AppendNote(inc.ID, domain.TaskStatusCompleted, "resuelto")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if inc.Status != domain.TaskStatusCompleted || len(inc.History) != 2 || inc.History[1].Text != "resuelto" {
		t.Fatalf("after append %+v", inc)
	}
	if _, err := s.AddIncident(IncidentInput{KitchenID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.AppendNote("missing", domain.TaskStatusPending, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetKitchen("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
