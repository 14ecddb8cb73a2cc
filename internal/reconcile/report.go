package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
	"pharmacy/m/internal/store"
)

// BuildSalesReport reconciles every sale dated within [startDate, endDate]
// against all returns of its (invoice, medicine) pair, newest first. When a
// pair has several sale rows each row is reconciled against the pooled
// returns of the pair.
func (e *Engine) BuildSalesReport(ctx context.Context, startDate, endDate string) (domain.SalesReport, error) {
	if err := validateRange(startDate, endDate); err != nil {
		return domain.SalesReport{}, err
	}
	recs, err := e.store.ReconciledSales(ctx, store.SaleQuery{StartDate: startDate, EndDate: endDate})
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		StartDate:     startDate,
		EndDate:       endDate,
		Rows:          make([]domain.ReportRow, 0, len(recs)),
		TotalSales:    decimal.Zero,
		TotalReturned: decimal.Zero,
	}
	for _, rec := range recs {
		netQty := rec.Quantity - rec.QtyReturned
		row := domain.ReportRow{
			SaleID:         rec.ID,
			MedicineID:     rec.MedicineID,
			Name:           rec.Name,
			InvoiceID:      rec.InvoiceID,
			Date:           rec.Date,
			Price:          rec.Price,
			QtySold:        rec.Quantity,
			QtyReturned:    rec.QtyReturned,
			NetQty:         netQty,
			Subtotal:       rec.Subtotal,
			ReturnedAmount: rec.Price.Mul(decimal.NewFromInt(rec.QtyReturned)),
			NetTotal:       rec.Price.Mul(decimal.NewFromInt(netQty)),
		}
		report.Rows = append(report.Rows, row)
		report.TotalSales = report.TotalSales.Add(row.Subtotal)
		report.TotalReturned = report.TotalReturned.Add(row.ReturnedAmount)
	}
	report.NetRevenue = report.TotalSales.Sub(report.TotalReturned)
	return report, nil
}

// FetchOpenSaleLines lists sale rows that still have returnable quantity,
// filtered by invoice when one is given and by date range otherwise.
func (e *Engine) FetchOpenSaleLines(ctx context.Context, filter domain.OpenLineFilter) ([]domain.OpenSaleLine, error) {
	q := store.SaleQuery{InvoiceID: filter.InvoiceID}
	if filter.InvoiceID == "" {
		if err := validateRange(filter.StartDate, filter.EndDate); err != nil {
			return nil, err
		}
		q.StartDate, q.EndDate = filter.StartDate, filter.EndDate
	}

	recs, err := e.store.ReconciledSales(ctx, q)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.OpenSaleLine, 0, len(recs))
	for _, rec := range recs {
		netQty := rec.Quantity - rec.QtyReturned
		if netQty <= 0 {
			continue
		}
		lines = append(lines, domain.OpenSaleLine{
			SaleID:      rec.ID,
			MedicineID:  rec.MedicineID,
			Name:        rec.Name,
			InvoiceID:   rec.InvoiceID,
			Date:        rec.Date,
			Price:       rec.Price,
			QtySold:     rec.Quantity,
			QtyReturned: rec.QtyReturned,
			NetQty:      netQty,
			NetSubtotal: lineSubtotal(netQty, rec.Price),
		})
	}
	return lines, nil
}

// validateRange checks both bounds are dates. A start after end is an empty
// range, not an error.
func validateRange(start, end string) error {
	if !domain.ValidDate(start) || !domain.ValidDate(end) {
		return fmt.Errorf("%w: dates must be YYYY-MM-DD, got %q and %q", domain.ErrInvalidFilter, start, end)
	}
	return nil
}
