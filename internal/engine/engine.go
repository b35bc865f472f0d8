package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kitchenlog/internal/config"
	"kitchenlog/internal/derive"
	"kitchenlog/internal/domain"
	"kitchenlog/internal/metrics"
	"kitchenlog/internal/registration"
	"kitchenlog/internal/store"
	"kitchenlog/internal/view"
)

type Engine struct {
	Store   *store.Store
	Config  *config.Config
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func New(st *store.Store, cfg *config.Config) Engine {
	return Engine{
		Store:  st,
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Snapshot returns the current collections.
func (e Engine) Snapshot() store.Snapshot {
	return e.Store.Snapshot()
}

// ListKitchens returns the summary rows matching query.
func (e Engine) ListKitchens(ctx context.Context, query string) []derive.KitchenSummary {
	snap := e.Store.Snapshot()
	filtered := derive.FilterKitchens(snap.Kitchens, query)
	if derive.SearchActive(query) {
		e.Metrics.Searched()
	}
	return derive.Summaries(filtered, snap.Incidents)
}

// Screen builds the list screen for a UI state.
func (e Engine) Screen(ctx context.Context, st view.State) view.List {
	if derive.SearchActive(st.Query) {
		e.Metrics.Searched()
	}
	return view.Build(e.Store.Snapshot(), st)
}

// KitchenDetail returns the detail panel of a kitchen with expandedIncidentID
// showing its full history.
func (e Engine) KitchenDetail(ctx context.Context, kitchenID, expandedIncidentID string) (view.Detail, error) {
	d, ok := view.BuildDetail(e.Store.Snapshot(), kitchenID, expandedIncidentID)
	if !ok {
		return view.Detail{}, fmt.Errorf("kitchen %s: %w", kitchenID, store.ErrNotFound)
	}
	return d, nil
}

// NewForm returns a registration form with defaults for today.
func (e Engine) NewForm() *registration.Form {
	return registration.NewForm(e.Config, e.now)
}

// RegisterKitchen validates fields and appends the new kitchen to the store.
func (e Engine) RegisterKitchen(ctx context.Context, fields registration.Fields) (domain.Kitchen, error) {
	form := e.NewForm()
	form.Fields = fields
	return e.Submit(ctx, form)
}

// Submit submits a form, handing the kitchen to the store on success.
func (e Engine) Submit(ctx context.Context, form *registration.Form) (domain.Kitchen, error) {
	var created domain.Kitchen
	_, err := form.Submit(func(d domain.KitchenDraft) {
		created = e.Store.AddKitchen(d)
	})
	if err != nil {
		e.Metrics.Rejected()
		e.logger().InfoContext(ctx, "kitchen registration rejected", "error", err)
		return domain.Kitchen{}, err
	}
	e.Metrics.Registered()
	e.logger().InfoContext(ctx, "kitchen registered", "kitchen_id", created.ID, "order_number", created.OrderNumber)
	return created, nil
}

// IncidentCreateOptions are parameters for opening an incident.
type IncidentCreateOptions struct {
	KitchenID   string
	Cause       domain.IncidentCause
	Description string
	Status      domain.TaskStatus
	Note        string
}

func (e Engine) AddIncident(ctx context.Context, opts IncidentCreateOptions) (domain.Incident, error) {
	if e.Config == nil {
		return domain.Incident{}, errors.New("config not loaded")
	}
	if opts.KitchenID == "" {
		return domain.Incident{}, errors.New("kitchen is required")
	}
	if strings.TrimSpace(opts.Description) == "" {
		return domain.Incident{}, errors.New("description is required")
	}
	if opts.Status == "" {
		opts.Status = e.Config.Incidents.Statuses[0]
	}
	if !e.Config.HasCause(opts.Cause) {
		return domain.Incident{}, fmt.Errorf("invalid cause %q", opts.Cause)
	}
	if !e.Config.HasStatus(opts.Status) {
		return domain.Incident{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	inc, err := e.Store.AddIncident(store.IncidentInput{
		KitchenID:   opts.KitchenID,
		Cause:       opts.Cause,
		Description: strings.TrimSpace(opts.Description),
		Status:      opts.Status,
		Note:        strings.TrimSpace(opts.Note),
	})
	if err != nil {
		return domain.Incident{}, err
	}
	e.Metrics.IncidentOpened()
	e.logger().InfoContext(ctx, "incident opened", "incident_id", inc.ID, "kitchen_id", inc.KitchenID, "cause", inc.Cause)
	return inc, nil
}

// AppendNote records a follow-up note; status defaults to the incident's
// current status.
func (e Engine) AppendNote(ctx context.Context, incidentID string, status domain.TaskStatus, text string) (domain.Incident, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Incident{}, errors.New("note text is required")
	}
	if status == "" {
		current, err := e.findIncident(incidentID)
		if err != nil {
			return domain.Incident{}, err
		}
		status = current.Status
	}
	if e.Config != nil && !e.Config.HasStatus(status) {
		return domain.Incident{}, fmt.Errorf("invalid status %q", status)
	}
	inc, err := e.Store.AppendNote(incidentID, status, text)
	if err != nil {
		return domain.Incident{}, err
	}
	e.Metrics.NoteAppended()
	e.logger().InfoContext(ctx, "incident note appended", "incident_id", inc.ID, "status", inc.Status, "notes", len(inc.History))
	return inc, nil
}

func (e Engine) findIncident(id string) (domain.Incident, error) {
	for _, inc := range e.Store.Snapshot().Incidents {
		if inc.ID == id {
			return inc, nil
		}
	}
	return domain.Incident{}, fmt.Errorf("incident %s: %w", id, store.ErrNotFound)
}
