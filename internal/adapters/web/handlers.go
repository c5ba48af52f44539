package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"invoicing-service/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
	CookieSecure   bool
	MaxBodyBytes   int64
}

// Handler holds the ApplicationService, the chi router and the session settings.
type Handler struct {
	svc    app.ApplicationService
	log    logrus.FieldLogger
	opts   Options
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger logrus.FieldLogger, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	h := &Handler{svc: svc, log: logger, opts: opts}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(RequestBodyLimit(opts.MaxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/me", h.me)

			r.Get("/customers", h.listCustomers)
			r.Post("/customers", h.createCustomer)
			r.Get("/customers/{id}", h.getCustomer)
			r.Put("/customers/{id}", h.updateCustomer)
			r.Patch("/customers/{id}", h.updateCustomer)
			r.Delete("/customers/{id}", h.deleteCustomer)

			r.Get("/items", h.listItems)
			r.Post("/items", h.createItem)
			r.Get("/items/{id}", h.getItem)
			r.Put("/items/{id}", h.updateItem)
			r.Patch("/items/{id}", h.updateItem)
			r.Delete("/items/{id}", h.deleteItem)

			r.Get("/invoices", h.listInvoices)
			r.Post("/invoices", h.createInvoice)
			r.Get("/invoices/{id}", h.getInvoice)
			r.Put("/invoices/{id}", h.updateInvoice)
			r.Patch("/invoices/{id}", h.updateInvoice)
			r.Delete("/invoices/{id}", h.deleteInvoice)
			r.Get("/invoices/{id}/pdf", h.exportInvoice("pdf"))
			r.Get("/invoices/{id}/xlsx", h.exportInvoice("xlsx"))

			r.Get("/invoices/{id}/items", h.listInvoiceLines)
			r.Post("/invoices/{id}/items", h.addInvoiceLine)
			r.Get("/invoice-items/{id}", h.getInvoiceLine)
			r.Put("/invoice-items/{id}", h.updateInvoiceLine)
			r.Patch("/invoice-items/{id}", h.updateInvoiceLine)
			r.Delete("/invoice-items/{id}", h.deleteInvoiceLine)
		})
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// health reports whether the database answers.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// idParam parses the {id} URL parameter. It writes a 404 and returns false when the
// value is not a positive integer, since such an id cannot name any entity.
func idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "not found", "NOT_FOUND", http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
		return false
	}
	return true
}
