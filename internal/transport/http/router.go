// Package http wires the chi router, middleware chain and request handlers.
// Handlers stay thin: decode, delegate to a service, encode. All domain
// decisions live behind the service boundary.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/platform/metrics"
	"doccontrol/internal/platform/middleware"
	"doccontrol/internal/signature"
	"doccontrol/internal/view"
	"doccontrol/internal/workflow"
	"doccontrol/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Roles allowed to author documents and versions.
var authorRoles = []string{"ADMIN", "QA_MANAGER", "QA", "DOCUMENT_CONTROLLER", "AUTHOR"}

// Roles allowed administrative overrides and configuration.
var controlRoles = []string{"ADMIN", "QA_MANAGER", "DOCUMENT_CONTROLLER"}

// Roles allowed to read the audit trail.
var auditRoles = []string{"ADMIN", "QA_MANAGER", "QA"}

type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Validator  middleware.JWTValidator
	Documents  *document.Service
	Templates  *workflow.TemplateService
	Gate       *signature.Gate
	View       *view.Service
	Identities *identity.Service
	Audit      *audit.Service
	Health     func(ctx context.Context) error
}

func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.ClientIP)
	r.Use(middleware.Device)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		r.Use(middleware.ContentTypeJSON)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.listDocuments)
			r.Get("/{id}", h.getDocument)
			r.With(middleware.RequireRole(authorRoles...)).Post("/", h.createDocument)
			r.With(middleware.RequireRole(authorRoles...)).Post("/{id}/versions", h.createVersion)
			r.With(middleware.RequireRole(controlRoles...)).Patch("/{id}", h.updateDocument)
		})

		r.Post("/document-versions/{id}/signatures", h.applySignature)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", h.listTemplates)
			r.With(middleware.RequireRole(controlRoles...)).Post("/", h.createTemplate)
		})

		r.Route("/document-types", func(r chi.Router) {
			r.Get("/", h.listTypes)
			r.With(middleware.RequireRole(controlRoles...)).Post("/", h.createType)
		})

		r.With(middleware.RequireRole(auditRoles...)).Get("/audit-log", h.listAuditEvents)
		r.Get("/dashboard", h.dashboard)

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(middleware.RequireRole("ADMIN", "QA_MANAGER"))
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Patch("/{id}", h.updateUser)
		})
	})

	return r
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
