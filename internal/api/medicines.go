package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
)

type medicineRequest struct {
	Name       string          `json:"name" validate:"required"`
	BatchNo    string          `json:"batch_no"`
	MfgDate    string          `json:"mfg_date"`
	ExpiryDate string          `json:"expiry_date" validate:"required"`
	Quantity   *int64          `json:"quantity" validate:"required,gte=0"`
	Price      decimal.Decimal `json:"price"`
	Demand     string          `json:"demand"`
}

func (req medicineRequest) toDomain(id int64) domain.Medicine {
	return domain.Medicine{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		BatchNo:    strings.TrimSpace(req.BatchNo),
		MfgDate:    strings.TrimSpace(req.MfgDate),
		ExpiryDate: strings.TrimSpace(req.ExpiryDate),
		Quantity:   *req.Quantity,
		Price:      req.Price,
		Demand:     strings.TrimSpace(req.Demand),
	}
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		meds, err := h.store.SearchMedicines(r.Context(), q)
		if err != nil {
			h.respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, nonNil(meds))
		return
	}

	opts := domain.ListOptions{
		SortBy:         r.URL.Query().Get("sort"),
		Descending:     r.URL.Query().Get("desc") == "true",
		Status:         domain.ExpiryStatus(r.URL.Query().Get("status")),
		NearExpiryDays: h.nearDays,
	}
	var err error
	if opts.MinQuantity, err = queryInt(r, "min_qty"); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if opts.MaxQuantity, err = queryInt(r, "max_qty"); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if opts.MinPrice, err = queryDecimal(r, "min_price"); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if opts.MaxPrice, err = queryDecimal(r, "max_price"); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	meds, err := h.store.ListMedicines(r.Context(), opts)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(meds))
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondBadPayload(w, err)
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "INVALID_QUANTITY_OR_PRICE", "price must not be negative")
		return
	}
	med, err := h.store.CreateMedicine(r.Context(), req.toDomain(0))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, med)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid medicine id")
		return
	}
	med, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid medicine id")
		return
	}
	var req medicineRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondBadPayload(w, err)
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "INVALID_QUANTITY_OR_PRICE", "price must not be negative")
		return
	}
	med := req.toDomain(id)
	if err := h.store.UpdateMedicine(r.Context(), med); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid medicine id")
		return
	}
	if err := h.store.DeleteMedicine(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid medicine id")
		return
	}
	var payload struct {
		Delta int64 `json:"delta" validate:"required"`
	}
	if err := h.decodeAndValidate(r, &payload); err != nil {
		h.respondBadPayload(w, err)
		return
	}
	if err := h.store.AdjustQuantity(r.Context(), id, payload.Delta); err != nil {
		h.respondDomainError(w, err)
		return
	}
	med, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// respondBadPayload reports malformed JSON and failed validation as 400.
func (h *Handler) respondBadPayload(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verrs.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload")
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
