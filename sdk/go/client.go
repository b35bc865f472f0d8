package kitchenlogsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Kitchenlog HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Kitchen represents a registered installation.
type Kitchen struct {
	ID               string `json:"id"`
	LDAP             string `json:"ldap"`
	OrderNumber      string `json:"order_number"`
	ClientName       string `json:"client_name"`
	Seller           string `json:"seller"`
	Installer        string `json:"installer"`
	InstallationDate string `json:"installation_date"`
}

// KitchenRow is a kitchen with its quality summary.
type KitchenRow struct {
	Kitchen
	Incidents      int  `json:"incidents"`
	Active         int  `json:"active"`
	NeedsAttention bool `json:"needs_attention"`
}

type HistoryEntry struct {
	Date         *string `json:"date,omitempty"`
	DateLabel    string  `json:"date_label"`
	StatusAtTime string  `json:"status_at_time"`
	Text         string  `json:"text"`
}

// Incident as rendered by the API. History holds the notes the server chose
// to show; see Expanded and EarlierNotes.
type Incident struct {
	ID           string         `json:"id"`
	KitchenID    string         `json:"kitchen_id"`
	Cause        string         `json:"cause"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	Badge        string         `json:"badge"`
	CreatedAt    string         `json:"created_at"`
	History      []HistoryEntry `json:"history"`
	NoHistory    bool           `json:"no_history"`
	Expanded     bool           `json:"expanded"`
	EarlierNotes int            `json:"earlier_notes"`
	Toggleable   bool           `json:"toggleable"`
}

type KitchenDetail struct {
	Kitchen   Kitchen    `json:"kitchen"`
	Incidents []Incident `json:"incidents"`
}

// RegisterKitchenInput carries the registration form fields.
type RegisterKitchenInput struct {
	LDAP             string `json:"ldap,omitempty"`
	OrderNumber      string `json:"order_number,omitempty"`
	ClientName       string `json:"client_name,omitempty"`
	Seller           string `json:"seller,omitempty"`
	Installer        string `json:"installer,omitempty"`
	InstallationDate string `json:"installation_date,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListKitchens returns kitchen rows matching query.
func (c *Client) ListKitchens(ctx context.Context, query string) ([]KitchenRow, error) {
	endpoint := "kitchens"
	if query != "" {
		endpoint += "?q=" + url.QueryEscape(query)
	}
	var resp []KitchenRow
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RegisterKitchen submits the registration form.
func (c *Client) RegisterKitchen(ctx context.Context, in RegisterKitchenInput) (Kitchen, error) {
	var resp Kitchen
	err := c.do(ctx, http.MethodPost, "kitchens", in, &resp)
	return resp, err
}

// GetKitchen fetches the detail panel; expandedIncidentID may be empty.
func (c *Client) GetKitchen(ctx context.Context, kitchenID, expandedIncidentID string) (KitchenDetail, error) {
	endpoint := "kitchens/" + url.PathEscape(kitchenID)
	if expandedIncidentID != "" {
		endpoint += "?expanded=" + url.QueryEscape(expandedIncidentID)
	}
	var resp KitchenDetail
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AddIncident opens an incident; status and note may be empty.
func (c *Client) AddIncident(ctx context.Context, kitchenID, cause, description, status, note string) (Incident, error) {
	body := map[string]any{
		"cause":       cause,
		"description": description,
	}
	if status != "" {
		body["status"] = status
	}
	if note != "" {
		body["note"] = note
	}
	var resp Incident
	endpoint := fmt.Sprintf("kitchens/%s/incidents", url.PathEscape(kitchenID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AppendNote adds a follow-up note. An empty status keeps the current one.
func (c *Client) AppendNote(ctx context.Context, incidentID, status, text string) (Incident, error) {
	body := map[string]any{"text": text}
	if status != "" {
		body["status"] = status
	}
	var resp Incident
	endpoint := fmt.Sprintf("incidents/%s/notes", url.PathEscape(incidentID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return parseError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
