package registration

import (
	"errors"
	"testing"
	"time"

	"kitchenlog/internal/config"
	"kitchenlog/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 30, 23, 30, 0, 0, time.UTC) }

func filled() Fields {
	return Fields{
		LDAP:             "LDAP1",
		OrderNumber:      "80112233",
		ClientName:       "Juan Perez",
		Seller:           "Lara",
		Installer:        "Instalador A",
		InstallationDate: "2024-01-15",
	}
}

func TestNewFormDefaults(t *testing.T) {
	f := NewForm(config.Default(), fixedNow)
	want := Fields{Seller: "Lara", Installer: "Instalador A", InstallationDate: "2024-06-30"}
	if f.Fields != want {
		t.Fatalf("defaults %+v want %+v", f.Fields, want)
	}
}

func TestDefaultsUseUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	local := time.Date(2024, 7, 1, 1, 0, 0, 0, loc) // 2024-06-30 22:00 UTC
	if got := Defaults(config.Default(), local).InstallationDate; got != "2024-06-30" {
		t.Fatalf("date %s", got)
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := NewForm(config.Default(), fixedNow)
	f.Fields = filled()
	f.Fields.Seller = "Raquel"
	f.Fields.Installer = "Instalador C"
	var calls []domain.KitchenDraft
	d, err := f.Submit(func(k domain.KitchenDraft) { calls = append(calls, k) })
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := domain.KitchenDraft{
		LDAP:             "LDAP1",
		OrderNumber:      "80112233",
		ClientName:       "Juan Perez",
		Seller:           "Raquel",
		Installer:        "Instalador C",
		InstallationDate: "2024-01-15",
	}
	if len(calls) != 1 || calls[0] != want || d != want {
		t.Fatalf("callback calls %+v", calls)
	}
	if f.Fields.Seller != "Lara" || f.Fields.Installer != "Instalador A" || f.Fields.ClientName != "" || f.Fields.InstallationDate != "2024-06-30" {
		t.Fatalf("form not reset: %+v", f.Fields)
	}
}

func TestSubmitMissingFieldKeepsState(t *testing.T) {
	f := NewForm(config.Default(), fixedNow)
	f.Fields = filled()
	f.Fields.ClientName = ""
	called := false
	_, err := f.Submit(func(domain.KitchenDraft) { called = true })
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != reasonMissing {
		t.Fatalf("unexpected error %v", err)
	}
	if called {
		t.Fatal("callback invoked on failure")
	}
	if f.Fields.LDAP != "LDAP1" || f.Fields.OrderNumber != "80112233" {
		t.Fatalf("form state cleared: %+v", f.Fields)
	}
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cases := map[string]func(*Fields){
		"blank ldap":         func(f *Fields) { f.LDAP = "   " },
		"empty order":        func(f *Fields) { f.OrderNumber = "" },
		"empty date":         func(f *Fields) { f.InstallationDate = "" },
		"unknown seller":     func(f *Fields) { f.Seller = "Pedro" },
		"seller wrong case":  func(f *Fields) { f.Seller = "lara" },
		"unknown installer":  func(f *Fields) { f.Installer = "Instalador Z" },
		"not a date":         func(f *Fields) { f.InstallationDate = "15/01/2024" },
		"impossible date":    func(f *Fields) { f.InstallationDate = "2024-02-30" },
	}
	for name, mutate := range cases {
		f := filled()
		mutate(&f)
		if _, err := Validate(cfg, f); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
	f := filled()
	f.ClientName = "  Juan Perez "
	d, err := Validate(cfg, f)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if d.ClientName != "Juan Perez" {
		t.Fatalf("client name not trimmed: %q", d.ClientName)
	}
}

func TestSubmitAllowsDuplicateOrderNumbers(t *testing.T) {
	f := NewForm(config.Default(), fixedNow)
	n := 0
	for i := 0; i < 2; i++ {
		f.Fields = filled()
		if _, err := f.Submit(func(domain.KitchenDraft) { n++ }); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if n != 2 {
		t.Fatalf("callback count %d", n)
	}
}
