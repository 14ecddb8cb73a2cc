package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date format used for every stored date column.
const DateLayout = "2006-01-02"

type Medicine struct {
	ID         int64           `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	BatchNo    string          `db:"batch_no" json:"batch_no"`
	MfgDate    string          `db:"mfg_date" json:"mfg_date"`
	ExpiryDate string          `db:"expiry_date" json:"expiry_date"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Demand     string          `db:"demand" json:"demand"`
}

// Sort columns accepted by ListOptions.
const (
	SortName       = "name"
	SortBatch      = "batch"
	SortMfgDate    = "mfg_date"
	SortExpiryDate = "expiry_date"
	SortQuantity   = "quantity"
	SortPrice      = "price"
)

// ListOptions carries the inventory screen's filter and sort state for one
// listing call. The zero value lists everything in id order.
type ListOptions struct {
	MinQuantity *int64
	MaxQuantity *int64
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Status      ExpiryStatus
	SortBy      string
	Descending  bool

	// Today and NearExpiryDays drive the Status filter. A zero Today means now.
	Today          time.Time
	NearExpiryDays int
}
