package server

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"kitchenlog/internal/config"
	"kitchenlog/internal/derive"
	"kitchenlog/internal/engine"
	"kitchenlog/internal/registration"
	"kitchenlog/internal/view"
)

type uiServer struct {
	e engine.Engine
	t *template.Template
}

type uiIndexData struct {
	List   view.List
	Config *config.Config
	Form   registration.Fields
	Error  string
}

func registerUI(r chi.Router, e engine.Engine) {
	s := &uiServer{e: e}
	s.t = template.Must(template.New("base").Funcs(template.FuncMap{
		"dateLabel": func(d *string) string { return derive.DateLabel(d, nil) },
		"selectURL": func(st view.State, id string) string { return stateURL(st.Select(id)) },
		"closeURL":  func(st view.State) string { return stateURL(st.ClearSelection()) },
		"toggleURL": func(st view.State, id string) string { return stateURL(st.ToggleExpanded(id)) },
	}).Parse(uiTemplates))

	r.Get("/ui", s.handleIndex)
	r.Post("/ui/kitchens", s.handleRegister)
}

func stateURL(st view.State) string {
	v := url.Values{}
	if st.Query != "" {
		v.Set("q", st.Query)
	}
	if st.SelectedKitchenID != "" {
		v.Set("selected", st.SelectedKitchenID)
	}
	if st.ExpandedIncidentID != "" {
		v.Set("expanded", st.ExpandedIncidentID)
	}
	if len(v) == 0 {
		return "/ui"
	}
	return "/ui?" + v.Encode()
}

func stateFromRequest(r *http.Request) view.State {
	q := r.URL.Query()
	return view.State{
		Query:              q.Get("q"),
		SelectedKitchenID:  q.Get("selected"),
		ExpandedIncidentID: q.Get("expanded"),
	}
}

// handleIndex renders the registration form, the searchable kitchen table and
// the detail panel of the selected kitchen.
func (s *uiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := uiIndexData{
		List:   s.e.Screen(r.Context(), stateFromRequest(r)),
		Config: s.e.Config,
		Form:   s.e.NewForm().Fields,
	}
	s.render(w, http.StatusOK, data)
}

// handleRegister submits the registration form. A rejected form is rendered
// again with the values as entered.
func (s *uiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := s.e.NewForm()
	form.Fields = registration.Fields{
		LDAP:             r.PostFormValue("ldap"),
		OrderNumber:      r.PostFormValue("order_number"),
		ClientName:       r.PostFormValue("client_name"),
		Seller:           r.PostFormValue("seller"),
		Installer:        r.PostFormValue("installer"),
		InstallationDate: r.PostFormValue("installation_date"),
	}
	entered := form.Fields
	k, err := s.e.Submit(r.Context(), form)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registration.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		s.render(w, status, uiIndexData{
			List:   s.e.Screen(r.Context(), view.State{}),
			Config: s.e.Config,
			Form:   entered,
			Error:  err.Error(),
		})
		return
	}
	http.Redirect(w, r, stateURL(view.State{}.Select(k.ID)), http.StatusSeeOther)
}

func (s *uiServer) render(w http.ResponseWriter, status int, data uiIndexData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = s.t.ExecuteTemplate(w, "index", data)
}

const uiTemplates = `
{{define "index"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Kitchenlog</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
    tr.selected { background: #ecfdf5; }
    .err { color: #b00020; }
    .muted { color: #666; }
    .badge { padding: 2px 8px; border-radius: 8px; font-size: 12px; }
    .badge-active { background: #fef3c7; }
    .badge-completed { background: #d1fae5; }
    .attention { color: #b91c1c; font-weight: bold; }
    .incident { border: 1px solid #eee; padding: 12px; margin: 12px 0; }
    .note { background: #f0fdf4; padding: 6px; margin: 4px 0; }
  </style>
</head>
<body>
  <h2>Register kitchen</h2>
  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}
  <form method="post" action="/ui/kitchens">
    <label>LDAP <input name="ldap" value="{{.Form.LDAP}}" placeholder="LDAP1234"/></label>
    <label>Order number <input name="order_number" value="{{.Form.OrderNumber}}" placeholder="80112233"/></label>
    <label>Client <input name="client_name" value="{{.Form.ClientName}}"/></label>
    <label>Seller <select name="seller">{{range .Config.Sellers}}<option value="{{.}}"{{if eq . $.Form.Seller}} selected{{end}}>{{.}}</option>{{end}}</select></label>
    <label>Installer <select name="installer">{{range .Config.Installers}}<option value="{{.}}"{{if eq . $.Form.Installer}} selected{{end}}>{{.}}</option>{{end}}</select></label>
    <label>Installation date <input type="date" name="installation_date" value="{{.Form.InstallationDate}}"/></label>
    <button type="submit">Register</button>
  </form>

  <h2>Kitchens</h2>
  <form method="get" action="/ui">
    <input name="q" value="{{.List.State.Query}}" placeholder="Order, client, LDAP, seller or installer" style="width: 360px;"/>
    <button type="submit">Search</button>
  </form>

  {{with .List.Detail}}
  <div>
    <h3>Project {{.Kitchen.OrderNumber}} <a href="{{closeURL $.List.State}}">close</a></h3>
    {{if not .Incidents}}
      <p class="muted">No incidents recorded.</p>
    {{end}}
    {{range .Incidents}}
      <div class="incident">
        <span class="badge">{{.Incident.Cause}}</span>
        <span class="badge badge-{{.Badge}}">{{.Incident.Status}}</span>
        <p>{{.Incident.Description}}</p>
        {{if .History.Empty}}
          <p class="muted">No follow-up notes yet.</p>
        {{else}}
          {{range .History.Entries}}
            <div class="note"><span class="muted">{{dateLabel .Date}} · {{.StatusAtTime}}</span><br/>{{.Text}}</div>
          {{end}}
          {{if .History.Toggleable}}
            <a href="{{toggleURL $.List.State .Incident.ID}}">{{if .History.Expanded}}[-] hide history{{else}}[+] show {{.History.Earlier}} earlier note(s){{end}}</a>
          {{end}}
        {{end}}
      </div>
    {{end}}
  </div>
  {{end}}

  <table>
    <thead><tr><th>Order / LDAP</th><th>Client</th><th>Seller / Installer</th><th>Quality</th></tr></thead>
    <tbody>
    {{range .List.Rows}}
      <tr{{if .Selected}} class="selected"{{end}}>
        <td><a href="{{selectURL $.List.State .Kitchen.ID}}">{{.Kitchen.OrderNumber}}</a><br/><span class="muted">{{.Kitchen.LDAP}}</span></td>
        <td>{{.Kitchen.ClientName}}</td>
        <td>S: {{.Kitchen.Seller}}<br/>I: {{.Kitchen.Installer}}</td>
        <td>
          {{if .NeedsAttention}}<span class="attention">{{.Active}} open</span>{{else}}OK{{end}}
          {{if .Incidents}}<br/><span class="muted">{{.Incidents}} entries</span>{{end}}
        </td>
      </tr>
    {{end}}
    </tbody>
  </table>
</body>
</html>
{{end}}
`
