package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
	"pharmacy/m/internal/checkout"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/monitor"
	"pharmacy/m/internal/reconcile"
	"pharmacy/m/internal/store"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store         *store.Store
	engine        *reconcile.Engine
	checkout      *checkout.Service
	refresher     *monitor.Refresher
	validate      *validator.Validate
	logger        *slog.Logger
	allowedOrigin string
	nearDays      int
}

type Deps struct {
	Store          *store.Store
	Engine         *reconcile.Engine
	Checkout       *checkout.Service
	Refresher      *monitor.Refresher
	Logger         *slog.Logger
	AllowedOrigin  string
	NearExpiryDays int
}

// New constructs a Handler.
func New(d Deps) *Handler {
	return &Handler{
		store:         d.Store,
		engine:        d.Engine,
		checkout:      d.Checkout,
		refresher:     d.Refresher,
		validate:      validator.New(),
		logger:        logging.OrDiscard(d.Logger),
		allowedOrigin: d.AllowedOrigin,
		nearDays:      d.NearExpiryDays,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.allowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{h.allowedOrigin},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/health", h.health)

	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.listMedicines)
		r.Post("/", h.createMedicine)
		r.Get("/{id}", h.getMedicine)
		r.Put("/{id}", h.updateMedicine)
		r.Delete("/{id}", h.deleteMedicine)
		r.Post("/{id}/adjust", h.adjustQuantity)
	})

	r.Get("/dashboard", h.dashboard)
	r.Post("/checkout", h.checkoutCart)

	r.Route("/returns", func(r chi.Router) {
		r.Get("/", h.listReturns)
		r.Post("/", h.recordReturn)
		r.Get("/remaining", h.remainingReturnable)
	})

	r.Get("/sales/open", h.openSaleLines)
	r.Get("/reports/sales", h.salesReport)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if last := h.refresher.Latest().GeneratedAt; !last.IsZero() {
		resp["last_refresh"] = last
	}
	respondJSON(w, http.StatusOK, resp)
}

// Helpers

func (h *Handler) decodeAndValidate(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	return h.validate.Struct(dest)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &v, nil
}

func queryDecimal(r *http.Request, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.New(key + " must be a number")
	}
	return &v, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondDomainError maps engine and store error kinds onto HTTP statuses.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verrs.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, domain.ErrOverReturn):
		respondError(w, http.StatusConflict, "OVER_RETURN", err.Error())
	case errors.Is(err, domain.ErrUnknownInvoiceOrMedicine):
		respondError(w, http.StatusNotFound, "UNKNOWN_INVOICE_OR_MEDICINE", err.Error())
	case errors.Is(err, domain.ErrMedicineNotFound):
		respondError(w, http.StatusNotFound, "MEDICINE_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantityOrPrice):
		respondError(w, http.StatusBadRequest, "INVALID_QUANTITY_OR_PRICE", err.Error())
	case errors.Is(err, domain.ErrInvalidFilter):
		respondError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("storage unavailable", "error", err)
		respondError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
	default:
		h.logger.Error("unexpected error", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	}
}
