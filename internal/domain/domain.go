package domain

// TaskStatus is the follow-up state of an incident.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// IsCompleted reports whether the status closes the incident.
func (s TaskStatus) IsCompleted() bool { return s == TaskStatusCompleted }

// IsActive reports whether an incident in this status still needs attention.
func (s TaskStatus) IsActive() bool { return !s.IsCompleted() }

// IncidentCause is a cause code; the accepted members are configured.
type IncidentCause string

const (
	CauseMeasurementError   IncidentCause = "MEASUREMENT_ERROR"
	CauseDamagedMaterial    IncidentCause = "DAMAGED_MATERIAL"
	CauseMissingParts       IncidentCause = "MISSING_PARTS"
	CauseInstallationDefect IncidentCause = "INSTALLATION_DEFECT"
	CauseDeliveryDelay      IncidentCause = "DELIVERY_DELAY"
	CauseOther              IncidentCause = "OTHER"
)

type Kitchen struct {
	ID               string `json:"id" yaml:"id"`
	LDAP             string `json:"ldap" yaml:"ldap"`
	OrderNumber      string `json:"order_number" yaml:"order_number"`
	ClientName       string `json:"client_name" yaml:"client_name"`
	Seller           string `json:"seller" yaml:"seller"`
	Installer        string `json:"installer" yaml:"installer"`
	InstallationDate string `json:"installation_date" yaml:"installation_date" format:"date"`
}

// KitchenDraft is a validated kitchen that has not been assigned an id yet.
type KitchenDraft struct {
	LDAP             string `json:"ldap"`
	OrderNumber      string `json:"order_number"`
	ClientName       string `json:"client_name"`
	Seller           string `json:"seller"`
	Installer        string `json:"installer"`
	InstallationDate string `json:"installation_date" format:"date"`
}

func (d KitchenDraft) WithID(id string) Kitchen {
	return Kitchen{
		ID:               id,
		LDAP:             d.LDAP,
		OrderNumber:      d.OrderNumber,
		ClientName:       d.ClientName,
		Seller:           d.Seller,
		Installer:        d.Installer,
		InstallationDate: d.InstallationDate,
	}
}

func (k Kitchen) Draft() KitchenDraft {
	return KitchenDraft{
		LDAP:             k.LDAP,
		OrderNumber:      k.OrderNumber,
		ClientName:       k.ClientName,
		Seller:           k.Seller,
		Installer:        k.Installer,
		InstallationDate: k.InstallationDate,
	}
}

type Incident struct {
	ID          string         `json:"id" yaml:"id"`
	KitchenID   string         `json:"kitchen_id" yaml:"kitchen_id"`
	Cause       IncidentCause  `json:"cause" yaml:"cause"`
	Description string         `json:"description" yaml:"description"`
	Status      TaskStatus     `json:"status" yaml:"status"`
	CreatedAt   string         `json:"created_at" yaml:"created_at" format:"date-time"`
	History     []HistoryEntry `json:"history" yaml:"history"`
}

// HistoryEntry is one follow-up note. Entries are append-only; the last one is the latest note.
type HistoryEntry struct {
	Date         *string    `json:"date,omitempty" yaml:"date,omitempty"`
	StatusAtTime TaskStatus `json:"status_at_time" yaml:"status_at_time"`
	Text         string     `json:"text" yaml:"text"`
}

// Clone returns a copy that shares no slices or pointers with i.
func (i Incident) Clone() Incident {
	out := i
	if i.History != nil {
		out.History = make([]HistoryEntry, len(i.History))
		for n, h := range i.History {
			if h.Date != nil {
				d := *h.Date
				h.Date = &d
			}
			out.History[n] = h
		}
	}
	return out
}
