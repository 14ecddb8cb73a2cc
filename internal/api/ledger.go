package api

import (
	"net/http"
	"strconv"
	"strings"

	"pharmacy/m/domain"
	"pharmacy/m/internal/checkout"
)

type checkoutRequest struct {
	Items []checkout.CartItem `json:"items" validate:"required,min=1,dive"`
}

type checkoutResponse struct {
	checkout.Receipt
	ReceiptText string `json:"receipt_text"`
}

func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondBadPayload(w, err)
		return
	}
	receipt, err := h.checkout.Checkout(r.Context(), req.Items)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, checkoutResponse{Receipt: receipt, ReceiptText: receipt.Text()})
}

type returnRequest struct {
	InvoiceID  string `json:"invoice_id" validate:"required"`
	MedicineID int64  `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) recordReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondBadPayload(w, err)
		return
	}
	ret, err := h.engine.RecordReturn(r.Context(), strings.TrimSpace(req.InvoiceID), req.MedicineID, req.Quantity)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ret)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	invoiceID := strings.TrimSpace(r.URL.Query().Get("invoice_id"))
	if invoiceID == "" {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invoice_id is required")
		return
	}
	rets, err := h.store.ReturnsByInvoice(r.Context(), invoiceID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rets))
}

func (h *Handler) remainingReturnable(w http.ResponseWriter, r *http.Request) {
	invoiceID := strings.TrimSpace(r.URL.Query().Get("invoice_id"))
	medicineID, err := strconv.ParseInt(r.URL.Query().Get("medicine_id"), 10, 64)
	if invoiceID == "" || err != nil || medicineID <= 0 {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invoice_id and medicine_id are required")
		return
	}
	remaining, err := h.engine.RemainingReturnable(r.Context(), invoiceID, medicineID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"invoice_id":  invoiceID,
		"medicine_id": medicineID,
		"remaining":   remaining,
	})
}

func (h *Handler) openSaleLines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OpenLineFilter{
		InvoiceID: strings.TrimSpace(q.Get("invoice_id")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
	}
	lines, err := h.engine.FetchOpenSaleLines(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(lines))
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.engine.BuildSalesReport(r.Context(), strings.TrimSpace(q.Get("start_date")), strings.TrimSpace(q.Get("end_date")))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if report.Rows == nil {
		report.Rows = []domain.ReportRow{}
	}
	respondJSON(w, http.StatusOK, report)
}
