// Package reconcile keeps on-hand stock, sale rows and incremental returns
// consistent per invoice line and builds return-adjusted sales reports.
//
// No line status is stored. Whether a sale line is open, partially returned
// or fully returned is derived from the ledger on every read.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
	"pharmacy/m/internal/invoice"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/store"
)

type Engine struct {
	store        *store.Store
	logger       *slog.Logger
	clock        func() time.Time
	newInvoiceID invoice.Generator
}

type Option func(*Engine)

// WithClock overrides the clock used to date ledger rows.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithInvoiceGenerator overrides how RecordSale mints invoice ids.
func WithInvoiceGenerator(gen invoice.Generator) Option {
	return func(e *Engine) { e.newInvoiceID = gen }
}

func New(st *store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{store: st, logger: logging.OrDiscard(logger), clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.newInvoiceID == nil {
		e.newInvoiceID = invoice.Clocked(e.clock)
	}
	return e
}

// Now reads the clock that dates ledger rows.
func (e *Engine) Now() time.Time {
	return e.clock()
}

func (e *Engine) today() string {
	return e.clock().Format(domain.DateLayout)
}

// RecordSale validates every line against one inventory snapshot and then
// decrements stock and appends one sale row per line, all in a single
// transaction. An empty invoiceID is replaced with a generated one.
func (e *Engine) RecordSale(ctx context.Context, invoiceID string, lines []domain.SaleLine) ([]domain.Sale, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: checkout has no lines", domain.ErrInvalidQuantityOrPrice)
	}
	requested := make(map[int64]int64, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity %d for medicine %d", domain.ErrInvalidQuantityOrPrice, line.Quantity, line.MedicineID)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: price %s for medicine %d", domain.ErrInvalidQuantityOrPrice, line.UnitPrice, line.MedicineID)
		}
		if _, seen := requested[line.MedicineID]; !seen {
			ids = append(ids, line.MedicineID)
		}
		requested[line.MedicineID] += line.Quantity
	}
	if invoiceID == "" {
		invoiceID = e.newInvoiceID()
	}
	date := e.today()

	var sales []domain.Sale
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		snapshot, err := tx.MedicinesByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			med, ok := snapshot[id]
			if !ok {
				return fmt.Errorf("%w: id %d", domain.ErrMedicineNotFound, id)
			}
			if requested[id] > med.Quantity {
				return fmt.Errorf("%w: %s (id %d) requested %d, on hand %d",
					domain.ErrInsufficientStock, med.Name, id, requested[id], med.Quantity)
			}
		}

		sales = make([]domain.Sale, 0, len(lines))
		for _, line := range lines {
			if err := tx.AdjustQuantity(ctx, line.MedicineID, -line.Quantity); err != nil {
				return err
			}
			sale, err := tx.InsertSale(ctx, domain.Sale{
				MedicineID: line.MedicineID,
				Name:       snapshot[line.MedicineID].Name,
				Quantity:   line.Quantity,
				Price:      line.UnitPrice,
				Subtotal:   lineSubtotal(line.Quantity, line.UnitPrice),
				Date:       date,
				InvoiceID:  invoiceID,
			})
			if err != nil {
				return err
			}
			sales = append(sales, sale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("sale recorded", "invoice_id", invoiceID, "lines", len(sales))
	return sales, nil
}

// RecordReturn accepts quantity back into stock against an earlier sale of
// the pair. The refund uses the price recorded on the sale, not the
// medicine's current price.
func (e *Engine) RecordReturn(ctx context.Context, invoiceID string, medicineID int64, quantity int64) (domain.Return, error) {
	if quantity <= 0 {
		return domain.Return{}, fmt.Errorf("%w: return quantity %d", domain.ErrInvalidQuantityOrPrice, quantity)
	}

	var ret domain.Return
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		sales, remaining, err := remainingForPair(ctx, tx, invoiceID, medicineID)
		if err != nil {
			return err
		}
		if quantity > remaining {
			return fmt.Errorf("%w: requested %d, remaining %d", domain.ErrOverReturn, quantity, remaining)
		}
		if _, err := tx.FindByID(ctx, medicineID); err != nil {
			return err
		}
		if err := tx.AdjustQuantity(ctx, medicineID, quantity); err != nil {
			return err
		}

		origin := sales[0]
		ret, err = tx.InsertReturn(ctx, domain.Return{
			MedicineID:   medicineID,
			Name:         origin.Name,
			Quantity:     quantity,
			Price:        origin.Price,
			RefundAmount: origin.Price.Mul(decimal.NewFromInt(quantity)),
			Date:         e.today(),
			InvoiceID:    invoiceID,
		})
		return err
	})
	if err != nil {
		return domain.Return{}, err
	}

	e.logger.Info("return recorded", "invoice_id", invoiceID, "medicine_id", medicineID,
		"quantity", quantity, "refund", ret.RefundAmount.StringFixed(2))
	return ret, nil
}

// RemainingReturnable recomputes sold minus returned for the pair from the
// ledger.
func (e *Engine) RemainingReturnable(ctx context.Context, invoiceID string, medicineID int64) (int64, error) {
	_, remaining, err := remainingForPair(ctx, e.store, invoiceID, medicineID)
	return remaining, err
}

func remainingForPair(ctx context.Context, st *store.Store, invoiceID string, medicineID int64) ([]domain.Sale, int64, error) {
	sales, err := st.SalesForPair(ctx, invoiceID, medicineID)
	if err != nil {
		return nil, 0, err
	}
	if len(sales) == 0 {
		return nil, 0, fmt.Errorf("%w: invoice %q medicine %d", domain.ErrUnknownInvoiceOrMedicine, invoiceID, medicineID)
	}
	var sold int64
	for _, s := range sales {
		sold += s.Quantity
	}
	returned, err := st.ReturnedQuantity(ctx, invoiceID, medicineID)
	if err != nil {
		return nil, 0, err
	}
	// Returns written outside RecordReturn can exceed the sale.
	return sales, max(sold-returned, 0), nil
}

func lineSubtotal(qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).Round(2)
}
