package server

import (
	"kitchenlog/internal/config"
	"kitchenlog/internal/derive"
	"kitchenlog/internal/domain"
	"kitchenlog/internal/registration"
	"kitchenlog/internal/view"
)

// Request payloads

// RegisterKitchenRequest leaves every field optional in the schema so that
// missing fields reach registration validation.
type RegisterKitchenRequest struct {
	LDAP             string `json:"ldap,omitempty"`
	OrderNumber      string `json:"order_number,omitempty"`
	ClientName       string `json:"client_name,omitempty"`
	Seller           string `json:"seller,omitempty"`
	Installer        string `json:"installer,omitempty"`
	InstallationDate string `json:"installation_date,omitempty"`
}

func (r RegisterKitchenRequest) fields() registration.Fields {
	return registration.Fields{
		LDAP:             r.LDAP,
		OrderNumber:      r.OrderNumber,
		ClientName:       r.ClientName,
		Seller:           r.Seller,
		Installer:        r.Installer,
		InstallationDate: r.InstallationDate,
	}
}

type CreateIncidentRequest struct {
	Cause       string `json:"cause"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Note        string `json:"note,omitempty"`
}

type AppendNoteRequest struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

// Response payloads

type FormDefaults struct {
	Seller           string `json:"seller"`
	Installer        string `json:"installer"`
	InstallationDate string `json:"installation_date" format:"date"`
}

type ConfigResponse struct {
	Sellers    []string     `json:"sellers"`
	Installers []string     `json:"installers"`
	Causes     []string     `json:"causes"`
	Statuses   []string     `json:"statuses"`
	Defaults   FormDefaults `json:"defaults"`
}

func configResponse(cfg *config.Config, defaults registration.Fields) ConfigResponse {
	res := ConfigResponse{
		Sellers:    append([]string{}, cfg.Sellers...),
		Installers: append([]string{}, cfg.Installers...),
		Causes:     []string{},
		Statuses:   []string{},
		Defaults: FormDefaults{
			Seller:           defaults.Seller,
			Installer:        defaults.Installer,
			InstallationDate: defaults.InstallationDate,
		},
	}
	for _, c := range cfg.Incidents.Causes {
		res.Causes = append(res.Causes, string(c))
	}
	for _, s := range cfg.Incidents.Statuses {
		res.Statuses = append(res.Statuses, string(s))
	}
	return res
}

type KitchenRowResponse struct {
	domain.Kitchen
	Incidents      int  `json:"incidents"`
	Active         int  `json:"active"`
	NeedsAttention bool `json:"needs_attention"`
}

func mapRows(items []derive.KitchenSummary) []KitchenRowResponse {
	res := make([]KitchenRowResponse, 0, len(items))
	for _, s := range items {
		res = append(res, KitchenRowResponse{
			Kitchen:        s.Kitchen,
			Incidents:      s.Incidents,
			Active:         s.Active,
			NeedsAttention: s.NeedsAttention,
		})
	}
	return res
}

type HistoryEntryResponse struct {
	Date         *string `json:"date,omitempty"`
	DateLabel    string  `json:"date_label"`
	StatusAtTime string  `json:"status_at_time"`
	Text         string  `json:"text"`
}

type IncidentResponse struct {
	ID          string                 `json:"id"`
	KitchenID   string                 `json:"kitchen_id"`
	Cause       string                 `json:"cause"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Badge       string                 `json:"badge" enum:"completed,active"`
	CreatedAt   string                 `json:"created_at"`
	History     []HistoryEntryResponse `json:"history"`
	NoHistory   bool                   `json:"no_history"`
	Expanded    bool                   `json:"expanded"`
	Earlier     int                    `json:"earlier_notes"`
	Toggleable  bool                   `json:"toggleable"`
}

type KitchenDetailResponse struct {
	Kitchen   domain.Kitchen     `json:"kitchen"`
	Incidents []IncidentResponse `json:"incidents"`
}

func detailResponse(d view.Detail) KitchenDetailResponse {
	res := KitchenDetailResponse{Kitchen: d.Kitchen, Incidents: make([]IncidentResponse, 0, len(d.Incidents))}
	for _, card := range d.Incidents {
		res.Incidents = append(res.Incidents, cardResponse(card))
	}
	return res
}

func cardResponse(card view.IncidentCard) IncidentResponse {
	inc := card.Incident
	res := IncidentResponse{
		ID:          inc.ID,
		KitchenID:   inc.KitchenID,
		Cause:       string(inc.Cause),
		Description: inc.Description,
		Status:      string(inc.Status),
		Badge:       string(card.Badge),
		CreatedAt:   inc.CreatedAt,
		History:     make([]HistoryEntryResponse, 0, len(card.History.Entries)),
		NoHistory:   card.History.Empty,
		Expanded:    card.History.Expanded,
		Earlier:     card.History.Earlier,
		Toggleable:  card.History.Toggleable,
	}
	for _, e := range card.History.Entries {
		res.History = append(res.History, historyEntryResponse(e))
	}
	return res
}

func historyEntryResponse(e domain.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		Date:         e.Date,
		DateLabel:    derive.DateLabel(e.Date, nil),
		StatusAtTime: string(e.StatusAtTime),
		Text:         e.Text,
	}
}

func incidentResponse(inc domain.Incident) IncidentResponse {
	card := view.IncidentCard{
		Incident: inc,
		Badge:    derive.StatusBadge(inc.Status),
		History:  derive.History(inc.History, inc.ID, inc.ID),
	}
	return cardResponse(card)
}
