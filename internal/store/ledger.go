package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
)

// ReconciledSale is a sale row together with the total quantity returned
// against its (invoice, medicine) pair at read time.
type ReconciledSale struct {
	domain.Sale
	QtyReturned int64
}

// SaleQuery selects sale rows either by invoice or by an inclusive date range.
type SaleQuery struct {
	InvoiceID string
	StartDate string
	EndDate   string
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO sales (medicine_id, name, quantity, price, subtotal, date, invoice_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sale.MedicineID, sale.Name, sale.Quantity, sale.Price, sale.Subtotal, sale.Date, sale.InvoiceID)
	if err != nil {
		return domain.Sale{}, storageErr("insert sale", err)
	}
	if sale.ID, err = res.LastInsertId(); err != nil {
		return domain.Sale{}, storageErr("insert sale", err)
	}
	return sale, nil
}

func (s *Store) InsertReturn(ctx context.Context, ret domain.Return) (domain.Return, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO returns (medicine_id, name, quantity, price, refund_amount, date, invoice_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ret.MedicineID, ret.Name, ret.Quantity, ret.Price, ret.RefundAmount, ret.Date, ret.InvoiceID)
	if err != nil {
		return domain.Return{}, storageErr("insert return", err)
	}
	if ret.ID, err = res.LastInsertId(); err != nil {
		return domain.Return{}, storageErr("insert return", err)
	}
	return ret, nil
}

// SalesForPair returns every sale row of the pair in insertion order.
func (s *Store) SalesForPair(ctx context.Context, invoiceID string, medicineID int64) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := sqlx.SelectContext(ctx, s.q, &sales, `SELECT id, medicine_id, name, quantity, price, subtotal, date, invoice_id
                FROM sales WHERE invoice_id = ? AND medicine_id = ? ORDER BY id`, invoiceID, medicineID)
	if err != nil {
		return nil, storageErr("load sales for pair", err)
	}
	return sales, nil
}

// ReturnedQuantity sums the well-formed return rows of the pair. Malformed
// rows are logged and left out.
func (s *Store) ReturnedQuantity(ctx context.Context, invoiceID string, medicineID int64) (int64, error) {
	var qty int64
	err := sqlx.GetContext(ctx, s.q, &qty, `SELECT COALESCE(SUM(quantity), 0) FROM returns
                WHERE invoice_id = ? AND medicine_id = ? AND `+returnQtyOK("quantity"), invoiceID, medicineID)
	if err != nil {
		return 0, storageErr("sum returns", err)
	}
	if err := s.logMalformedReturns(ctx, `r.invoice_id = ? AND r.medicine_id = ?`, invoiceID, medicineID); err != nil {
		return 0, err
	}
	return qty, nil
}

// returnQtyOK matches return rows whose quantity is a positive integer.
func returnQtyOK(col string) string {
	return fmt.Sprintf("(typeof(%[1]s) = 'integer' AND %[1]s > 0)", col)
}

// logMalformedReturns warns about every return row matching filter that
// the quantity sums exclude.
func (s *Store) logMalformedReturns(ctx context.Context, filter string, args ...any) error {
	var bad []struct {
		ID       int64          `db:"id"`
		Quantity sql.NullString `db:"quantity"`
	}
	err := sqlx.SelectContext(ctx, s.q, &bad, `SELECT r.id, CAST(r.quantity AS TEXT) AS quantity FROM returns r
                WHERE NOT `+returnQtyOK("r.quantity")+` AND `+filter+` ORDER BY r.id`, args...)
	if err != nil {
		return storageErr("scan malformed returns", err)
	}
	for _, b := range bad {
		s.logger.Warn("skipping malformed return row", "return_id", b.ID, "quantity", b.Quantity.String)
	}
	return nil
}

// ReturnsByInvoice lists the return rows of an invoice in insertion order.
func (s *Store) ReturnsByInvoice(ctx context.Context, invoiceID string) ([]domain.Return, error) {
	var rets []domain.Return
	err := sqlx.SelectContext(ctx, s.q, &rets, `SELECT id, medicine_id, name, quantity, price, refund_amount, date, invoice_id
                FROM returns WHERE invoice_id = ? ORDER BY id`, invoiceID)
	if err != nil {
		return nil, storageErr("load returns", err)
	}
	return rets, nil
}

// rawSale mirrors a sales row as text so one malformed value skips its row
// instead of failing the whole listing.
type rawSale struct {
	ID          int64          `db:"id"`
	MedicineID  sql.NullString `db:"medicine_id"`
	Name        sql.NullString `db:"name"`
	Quantity    sql.NullString `db:"quantity"`
	Price       sql.NullString `db:"price"`
	Subtotal    sql.NullString `db:"subtotal"`
	Date        sql.NullString `db:"date"`
	InvoiceID   sql.NullString `db:"invoice_id"`
	QtyReturned sql.NullString `db:"qty_returned"`
}

var reconciledSalesQuery = `SELECT s.id, s.medicine_id, s.name, s.quantity, s.price, s.subtotal, s.date, s.invoice_id,
                COALESCE(r.qty_returned, 0) AS qty_returned
                FROM sales s
                LEFT JOIN (
                    SELECT invoice_id, medicine_id, SUM(quantity) AS qty_returned
                    FROM returns WHERE ` + returnQtyOK("quantity") + `
                    GROUP BY invoice_id, medicine_id
                ) r ON r.invoice_id = s.invoice_id AND r.medicine_id = s.medicine_id`

// ReconciledSales joins sale rows against the summed returns of their pair.
// An invoice query lists in insertion order; a date range lists newest
// first. Rows with a malformed value are logged and left out.
func (s *Store) ReconciledSales(ctx context.Context, q SaleQuery) ([]ReconciledSale, error) {
	var (
		query = reconciledSalesQuery
		args  []any
	)
	var returnFilter string
	if q.InvoiceID != "" {
		query += ` WHERE s.invoice_id = ? ORDER BY s.id`
		returnFilter = `r.invoice_id = ?`
		args = append(args, q.InvoiceID)
	} else {
		query += ` WHERE s.date >= ? AND s.date <= ? ORDER BY s.date DESC, s.id DESC`
		returnFilter = `EXISTS (SELECT 1 FROM sales s WHERE s.invoice_id = r.invoice_id
                    AND s.medicine_id = r.medicine_id AND s.date >= ? AND s.date <= ?)`
		args = append(args, q.StartDate, q.EndDate)
	}
	if err := s.logMalformedReturns(ctx, returnFilter, args...); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query sales", err)
	}
	defer rows.Close()

	var out []ReconciledSale
	for rows.Next() {
		var raw rawSale
		if err := rows.StructScan(&raw); err != nil {
			return nil, storageErr("scan sale", err)
		}
		rec, err := raw.parse()
		if err != nil {
			s.logger.Warn("skipping malformed sale row", "sale_id", raw.ID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sales", err)
	}
	return out, nil
}

func (r rawSale) parse() (ReconciledSale, error) {
	medicineID, err := parseInt("medicine_id", r.MedicineID)
	if err != nil {
		return ReconciledSale{}, err
	}
	qty, err := parseInt("quantity", r.Quantity)
	if err != nil {
		return ReconciledSale{}, err
	}
	returned, err := parseInt("qty_returned", r.QtyReturned)
	if err != nil {
		return ReconciledSale{}, err
	}
	price, err := parseDecimal("price", r.Price)
	if err != nil {
		return ReconciledSale{}, err
	}
	subtotal, err := parseDecimal("subtotal", r.Subtotal)
	if err != nil {
		return ReconciledSale{}, err
	}
	if !r.Date.Valid || !domain.ValidDate(r.Date.String) {
		return ReconciledSale{}, fmt.Errorf("date %q is not YYYY-MM-DD", r.Date.String)
	}
	return ReconciledSale{
		Sale: domain.Sale{
			ID:         r.ID,
			MedicineID: medicineID,
			Name:       r.Name.String,
			Quantity:   qty,
			Price:      price,
			Subtotal:   subtotal,
			Date:       r.Date.String,
			InvoiceID:  r.InvoiceID.String,
		},
		QtyReturned: returned,
	}, nil
}

func parseInt(field string, v sql.NullString) (int64, error) {
	if !v.Valid {
		return 0, fmt.Errorf("%s is null", field)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.String), 10, 64)
	if err != nil {
		// Whole-number REALs such as "5.0" are still quantities.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%s %q is not an integer", field, v.String)
		}
		n = int64(f)
	}
	return n, nil
}

func parseDecimal(field string, v sql.NullString) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, fmt.Errorf("%s is null", field)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.String))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q is not numeric", field, v.String)
	}
	return d, nil
}
