package domain

import "github.com/shopspring/decimal"

// Sale is one ledger line written by a checkout. Sales are never updated.
type Sale struct {
	ID         int64           `db:"id" json:"id"`
	MedicineID int64           `db:"medicine_id" json:"medicine_id"`
	Name       string          `db:"name" json:"name"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Date       string          `db:"date" json:"date"`
	InvoiceID  string          `db:"invoice_id" json:"invoice_id"`
}

// Return is one incremental return against an (invoice, medicine) pair.
type Return struct {
	ID           int64           `db:"id" json:"id"`
	MedicineID   int64           `db:"medicine_id" json:"medicine_id"`
	Name         string          `db:"name" json:"name"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	Price        decimal.Decimal `db:"price" json:"price"`
	RefundAmount decimal.Decimal `db:"refund_amount" json:"refund_amount"`
	Date         string          `db:"date" json:"date"`
	InvoiceID    string          `db:"invoice_id" json:"invoice_id"`
}

// SaleLine is one requested line of a checkout.
type SaleLine struct {
	MedicineID int64           `json:"medicine_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// ReportRow is a sale row reconciled against every return of its pair.
type ReportRow struct {
	SaleID         int64           `json:"sale_id"`
	MedicineID     int64           `json:"medicine_id"`
	Name           string          `json:"name"`
	InvoiceID      string          `json:"invoice_id"`
	Date           string          `json:"date"`
	Price          decimal.Decimal `json:"price"`
	QtySold        int64           `json:"qty_sold"`
	QtyReturned    int64           `json:"qty_returned"`
	NetQty         int64           `json:"net_qty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ReturnedAmount decimal.Decimal `json:"returned_amount"`
	NetTotal       decimal.Decimal `json:"net_total"`
}

type SalesReport struct {
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Rows          []ReportRow     `json:"rows"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalReturned decimal.Decimal `json:"total_returned"`
	NetRevenue    decimal.Decimal `json:"net_revenue"`
}

// OpenSaleLine is a sale row that still has returnable quantity.
type OpenSaleLine struct {
	SaleID      int64           `json:"sale_id"`
	MedicineID  int64           `json:"medicine_id"`
	Name        string          `json:"name"`
	InvoiceID   string          `json:"invoice_id"`
	Date        string          `json:"date"`
	Price       decimal.Decimal `json:"price"`
	QtySold     int64           `json:"qty_sold"`
	QtyReturned int64           `json:"qty_returned"`
	NetQty      int64           `json:"net_qty"`
	NetSubtotal decimal.Decimal `json:"net_subtotal"`
}

// OpenLineFilter selects candidate lines for the return screen. InvoiceID
// wins over the date range when both are set.
type OpenLineFilter struct {
	InvoiceID string
	StartDate string
	EndDate   string
}
