package registration

import (
	"errors"
	"strings"
	"time"

	"kitchenlog/internal/config"
	"kitchenlog/internal/domain"
)

// ErrValidation is matched by every registration validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError is the single aggregate error returned for a rejected form.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

const (
	reasonMissing = "all fields are required"
	reasonInvalid = "seller, installer or installation date is not a valid option"
)

const dateLayout = "2006-01-02"

// Fields is the raw registration input.
type Fields struct {
	LDAP             string `json:"ldap"`
	OrderNumber      string `json:"order_number"`
	ClientName       string `json:"client_name"`
	Seller           string `json:"seller"`
	Installer        string `json:"installer"`
	InstallationDate string `json:"installation_date"`
}

// Defaults returns the field values of a freshly mounted or reset form.
func Defaults(cfg *config.Config, now time.Time) Fields {
	return Fields{
		Seller:           cfg.DefaultSeller(),
		Installer:        cfg.DefaultInstaller(),
		InstallationDate: now.UTC().Format(dateLayout),
	}
}

// Validate checks f and builds the kitchen to hand to the store.
// Uniqueness of the order number is left to the store.
func Validate(cfg *config.Config, f Fields) (domain.KitchenDraft, error) {
	d := domain.KitchenDraft{
		LDAP:             strings.TrimSpace(f.LDAP),
		OrderNumber:      strings.TrimSpace(f.OrderNumber),
		ClientName:       strings.TrimSpace(f.ClientName),
		Seller:           strings.TrimSpace(f.Seller),
		Installer:        strings.TrimSpace(f.Installer),
		InstallationDate: strings.TrimSpace(f.InstallationDate),
	}
	for _, v := range []string{d.LDAP, d.OrderNumber, d.ClientName, d.Seller, d.Installer, d.InstallationDate} {
		if v == "" {
			return domain.KitchenDraft{}, &ValidationError{Reason: reasonMissing}
		}
	}
	if !cfg.HasSeller(d.Seller) || !cfg.HasInstaller(d.Installer) {
		return domain.KitchenDraft{}, &ValidationError{Reason: reasonInvalid}
	}
	if _, err := time.Parse(dateLayout, d.InstallationDate); err != nil {
		return domain.KitchenDraft{}, &ValidationError{Reason: reasonInvalid}
	}
	return d, nil
}

// Form holds the state of one registration form.
type Form struct {
	Config *config.Config
	Now    func() time.Time
	Fields Fields
}

// NewForm returns a form populated with Defaults.
func NewForm(cfg *config.Config, now func() time.Time) *Form {
	if now == nil {
		now = time.Now
	}
	f := &Form{Config: cfg, Now: now}
	f.Reset()
	return f
}

// Reset restores the default field values.
func (f *Form) Reset() {
	f.Fields = Defaults(f.Config, f.Now())
}

// Submit validates the form. On success onAdd is called once with the new
// kitchen and the form is reset; on failure the fields are left as entered.
func (f *Form) Submit(onAdd func(domain.KitchenDraft)) (domain.KitchenDraft, error) {
	d, err := Validate(f.Config, f.Fields)
	if err != nil {
		return domain.KitchenDraft{}, err
	}
	if onAdd != nil {
		onAdd(d)
	}
	f.Reset()
	return d, nil
}
