// Package checkout turns a cart into one invoice worth of sale rows and the
// receipt text for it.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
	"pharmacy/m/internal/reconcile"
	"pharmacy/m/internal/store"
)

type CartItem struct {
	MedicineID int64 `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int64 `json:"quantity" validate:"required,gt=0"`
}

type ReceiptLine struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Receipt struct {
	InvoiceID string          `json:"invoice_id"`
	IssuedAt  time.Time       `json:"issued_at"`
	Lines     []ReceiptLine   `json:"lines"`
	Total     decimal.Decimal `json:"total"`
}

// Text renders the receipt slip.
func (r Receipt) Text() string {
	var b strings.Builder
	b.WriteString("Receipt - Pharmacy\n")
	fmt.Fprintf(&b, "Invoice: %s\n", r.InvoiceID)
	fmt.Fprintf(&b, "Date: %s\n\n", r.IssuedAt.Format("2006-01-02 15:04:05"))
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s x%d @ Rs.%s = Rs.%s\n", l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal Amount: Rs. %s\n", r.Total.StringFixed(2))
	b.WriteString("\nThank you for your purchase!\n")
	return b.String()
}

// Service dates receipts with the engine's clock so a receipt and its sale
// rows agree on the day.
type Service struct {
	store  *store.Store
	engine *reconcile.Engine
}

func New(st *store.Store, engine *reconcile.Engine) *Service {
	return &Service{store: st, engine: engine}
}

// Checkout prices each cart item at the medicine's current price and
// records the whole cart as one sale batch.
func (s *Service) Checkout(ctx context.Context, cart []CartItem) (Receipt, error) {
	if len(cart) == 0 {
		return Receipt{}, fmt.Errorf("%w: cart is empty", domain.ErrInvalidQuantityOrPrice)
	}
	ids := make([]int64, 0, len(cart))
	for _, item := range cart {
		ids = append(ids, item.MedicineID)
	}
	meds, err := s.store.MedicinesByIDs(ctx, ids)
	if err != nil {
		return Receipt{}, err
	}

	lines := make([]domain.SaleLine, 0, len(cart))
	for _, item := range cart {
		med, ok := meds[item.MedicineID]
		if !ok {
			return Receipt{}, fmt.Errorf("%w: id %d", domain.ErrMedicineNotFound, item.MedicineID)
		}
		lines = append(lines, domain.SaleLine{MedicineID: med.ID, Quantity: item.Quantity, UnitPrice: med.Price})
	}

	sales, err := s.engine.RecordSale(ctx, "", lines)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		InvoiceID: sales[0].InvoiceID,
		IssuedAt:  issuedAt(s.engine.Now(), sales[0].Date),
		Lines:     make([]ReceiptLine, 0, len(sales)),
		Total:     decimal.Zero,
	}
	for _, sale := range sales {
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			Name:     sale.Name,
			Quantity: sale.Quantity,
			Price:    sale.Price,
			Subtotal: sale.Subtotal,
		})
		receipt.Total = receipt.Total.Add(sale.Subtotal)
	}
	return receipt, nil
}

// issuedAt is now, or the last second of saleDate when the clock has
// already moved past the day the sale was booked on.
func issuedAt(now time.Time, saleDate string) time.Time {
	if now.Format(domain.DateLayout) == saleDate {
		return now
	}
	d, err := time.ParseInLocation(domain.DateLayout, saleDate, now.Location())
	if err != nil {
		return now
	}
	return d.Add(24*time.Hour - time.Second)
}
