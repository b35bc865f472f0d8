package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kitchenlog/internal/domain"
	"kitchenlog/internal/engine"
	"kitchenlog/internal/registration"
	"kitchenlog/internal/store"
)

// Config for the HTTP handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"all fields are required"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the JSON API under BasePath, the
// browser UI under /ui and metrics under /metrics.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, errorDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema errors are malformed requests, not rejected registrations.
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, errorDetails(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	hcfg := huma.DefaultConfig("Kitchenlog API", "0.1.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = basePath + "/docs"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerConfig(group, cfg.Engine)
	registerKitchens(group, cfg.Engine)
	registerIncidents(group, cfg.Engine)
	registerUI(router, cfg.Engine)
	if cfg.Engine.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Engine.Metrics.Handler())
	}
	return router, nil
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return map[string]any{"errors": msgs}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, registration.ErrValidation) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string
	}, error) {
		return &struct {
			Body map[string]string
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "Configured option sets and registration defaults",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConfigResponse
	}, error) {
		return &struct {
			Body ConfigResponse
		}{Body: configResponse(e.Config, e.NewForm().Fields)}, nil
	})
}

func registerKitchens(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-kitchens",
		Method:      http.MethodGet,
		Path:        "/kitchens",
		Summary:     "List kitchens",
		Description: "Searches order number, client, seller, installer and LDAP once the query has two characters.",
	}, func(ctx context.Context, input *struct {
		Query string `query:"q" doc:"search text"`
	}) (*struct {
		Body []KitchenRowResponse
	}, error) {
		return &struct {
			Body []KitchenRowResponse
		}{Body: mapRows(e.ListKitchens(ctx, input.Query))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-kitchen",
		Method:        http.MethodPost,
		Path:          "/kitchens",
		Summary:       "Register kitchen",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RegisterKitchenRequest
	}) (*struct {
		Body domain.Kitchen
	}, error) {
		k, err := e.RegisterKitchen(ctx, input.Body.fields())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Kitchen
		}{Body: k}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-kitchen",
		Method:      http.MethodGet,
		Path:        "/kitchens/{kitchen_id}",
		Summary:     "Kitchen detail with incident history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KitchenID string `path:"kitchen_id"`
		Expanded  string `query:"expanded" doc:"incident id whose full history is shown"`
	}) (*struct {
		Body KitchenDetailResponse
	}, error) {
		d, err := e.KitchenDetail(ctx, input.KitchenID, input.Expanded)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body KitchenDetailResponse
		}{Body: detailResponse(d)}, nil
	})
}

func registerIncidents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-incident",
		Method:        http.MethodPost,
		Path:          "/kitchens/{kitchen_id}/incidents",
		Summary:       "Open incident",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KitchenID string `path:"kitchen_id"`
		Body      CreateIncidentRequest
	}) (*struct {
		Body IncidentResponse
	}, error) {
		inc, err := e.AddIncident(ctx, engine.IncidentCreateOptions{
			KitchenID:   input.KitchenID,
			Cause:       domain.IncidentCause(input.Body.Cause),
			Description: input.Body.Description,
			Status:      domain.TaskStatus(input.Body.Status),
			Note:        input.Body.Note,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IncidentResponse
		}{Body: incidentResponse(inc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-note",
		Method:        http.MethodPost,
		Path:          "/incidents/{incident_id}/notes",
		Summary:       "Append follow-up note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IncidentID string `path:"incident_id"`
		Body       AppendNoteRequest
	}) (*struct {
		Body IncidentResponse
	}, error) {
		inc, err := e.AppendNote(ctx, input.IncidentID, domain.TaskStatus(input.Body.Status), input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IncidentResponse
		}{Body: incidentResponse(inc)}, nil
	})
}
