package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/m/domain"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrations.Run(context.Background(), db)
	require.NoError(t, err)
	return New(db, nil)
}

func seedMedicines(t *testing.T, s *Store) []domain.Medicine {
	t.Helper()
	rows := []domain.Medicine{
		{Name: "Paracetamol", BatchNo: "PX-01", MfgDate: "2025-01-01", ExpiryDate: "2027-06-01", Quantity: 40, Price: decimal.RequireFromString("1.50")},
		{Name: "amoxicillin", BatchNo: "AM-77", MfgDate: "2025-03-01", ExpiryDate: "2026-10-20", Quantity: 5, Price: decimal.RequireFromString("12.00")},
		{Name: "Zinc", BatchNo: "ZN-09", MfgDate: "bad", ExpiryDate: "2026-01-01", Quantity: 120, Price: decimal.RequireFromString("0.75")},
		{Name: "Ors", BatchNo: "OR-02", MfgDate: "2024-11-11", ExpiryDate: "", Quantity: 8, Price: decimal.RequireFromString("3.10")},
	}
	out := make([]domain.Medicine, 0, len(rows))
	for _, m := range rows {
		created, err := s.CreateMedicine(context.Background(), m)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func names(meds []domain.Medicine) []string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		out = append(out, m.Name)
	}
	return out
}

func TestMedicineCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meds := seedMedicines(t, s)

	got, err := s.FindByID(ctx, meds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol", got.Name)
	assert.Equal(t, "1.50", got.Price.StringFixed(2))

	got.Demand = "high"
	got.Quantity = 41
	require.NoError(t, s.UpdateMedicine(ctx, got))
	got, err = s.FindByID(ctx, meds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "high", got.Demand)
	assert.Equal(t, int64(41), got.Quantity)

	require.NoError(t, s.AdjustQuantity(ctx, got.ID, -11))
	got, err = s.FindByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Quantity)

	require.NoError(t, s.DeleteMedicine(ctx, got.ID))
	_, err = s.FindByID(ctx, got.ID)
	assert.ErrorIs(t, err, domain.ErrMedicineNotFound)
	assert.ErrorIs(t, s.DeleteMedicine(ctx, got.ID), domain.ErrMedicineNotFound)
	assert.ErrorIs(t, s.AdjustQuantity(ctx, got.ID, 1), domain.ErrMedicineNotFound)
	assert.ErrorIs(t, s.UpdateMedicine(ctx, got), domain.ErrMedicineNotFound)
}

func TestMedicinesByIDs(t *testing.T) {
	s := newTestStore(t)
	meds := seedMedicines(t, s)

	found, err := s.MedicinesByIDs(context.Background(), []int64{meds[1].ID, meds[3].ID, 999})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Ors", found[meds[3].ID].Name)
}

func TestListMedicinesFiltersAndSorts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedMedicines(t, s)

	all, err := s.ListMedicines(ctx, domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Paracetamol", "amoxicillin", "Zinc", "Ors"}, names(all))

	byName, err := s.ListMedicines(ctx, domain.ListOptions{SortBy: domain.SortName})
	require.NoError(t, err)
	assert.Equal(t, []string{"amoxicillin", "Ors", "Paracetamol", "Zinc"}, names(byName))

	minQ, maxP := int64(6), decimal.RequireFromString("5")
	filtered, err := s.ListMedicines(ctx, domain.ListOptions{MinQuantity: &minQ, MaxPrice: &maxP, SortBy: domain.SortQuantity, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zinc", "Paracetamol", "Ors"}, names(filtered))

	byMfg, err := s.ListMedicines(ctx, domain.ListOptions{SortBy: domain.SortMfgDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zinc", "Ors", "Paracetamol", "amoxicillin"}, names(byMfg))

	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	expired, err := s.ListMedicines(ctx, domain.ListOptions{Status: domain.ExpiryExpired, Today: today, NearExpiryDays: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zinc"}, names(expired))

	near, err := s.ListMedicines(ctx, domain.ListOptions{Status: domain.ExpiryNear, Today: today, NearExpiryDays: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"amoxicillin"}, names(near))
}

func TestSearchMedicines(t *testing.T) {
	s := newTestStore(t)
	seedMedicines(t, s)

	hits, err := s.SearchMedicines(context.Background(), " AMOX ")
	require.NoError(t, err)
	assert.Equal(t, []string{"amoxicillin"}, names(hits))

	hits, err = s.SearchMedicines(context.Background(), "zn-")
	require.NoError(t, err)
	assert.Equal(t, []string{"Zinc"}, names(hits))
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meds := seedMedicines(t, s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Store) error {
		require.NoError(t, tx.AdjustQuantity(ctx, meds[0].ID, -40))
		_, err := tx.InsertSale(ctx, domain.Sale{MedicineID: meds[0].ID, Name: "Paracetamol", Quantity: 40,
			Price: meds[0].Price, Subtotal: decimal.RequireFromString("60"), Date: "2026-10-14", InvoiceID: "INV1"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.FindByID(ctx, meds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.Quantity)
	sales, err := s.SalesForPair(ctx, "INV1", meds[0].ID)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestReconciledSalesJoinsReturns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meds := seedMedicines(t, s)
	price := decimal.RequireFromString("1.50")

	for _, sale := range []domain.Sale{
		{MedicineID: meds[0].ID, Name: "Paracetamol", Quantity: 4, Price: price, Subtotal: price.Mul(decimal.NewFromInt(4)), Date: "2026-10-13", InvoiceID: "INV1"},
		{MedicineID: meds[0].ID, Name: "Paracetamol", Quantity: 2, Price: price, Subtotal: price.Mul(decimal.NewFromInt(2)), Date: "2026-10-14", InvoiceID: "INV2"},
	} {
		_, err := s.InsertSale(ctx, sale)
		require.NoError(t, err)
	}
	for _, qty := range []int64{1, 2} {
		_, err := s.InsertReturn(ctx, domain.Return{MedicineID: meds[0].ID, Name: "Paracetamol", Quantity: qty,
			Price: price, RefundAmount: price.Mul(decimal.NewFromInt(qty)), Date: "2026-10-14", InvoiceID: "INV1"})
		require.NoError(t, err)
	}

	recs, err := s.ReconciledSales(ctx, SaleQuery{StartDate: "2026-10-01", EndDate: "2026-10-31"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "INV2", recs[0].InvoiceID)
	assert.Equal(t, int64(0), recs[0].QtyReturned)
	assert.Equal(t, "INV1", recs[1].InvoiceID)
	assert.Equal(t, int64(3), recs[1].QtyReturned)
	assert.Equal(t, "6.00", recs[1].Subtotal.StringFixed(2))

	back, err := s.ReturnedQuantity(ctx, "INV1", meds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), back)

	rets, err := s.ReturnsByInvoice(ctx, "INV1")
	require.NoError(t, err)
	assert.Len(t, rets, 2)
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	s := New(db, nil)
	require.NoError(t, db.Close())

	_, err = s.ListMedicines(context.Background(), domain.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestLegacyRowsWithNullColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.db.Exec(`INSERT INTO medicines (name, batch_no, mfg_date, expiry_date, quantity, price) VALUES ('Old stock', NULL, NULL, NULL, NULL, NULL)`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	got, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.BatchNo)
	assert.Empty(t, got.ExpiryDate)
	assert.Zero(t, got.Quantity)
	assert.True(t, got.Price.IsZero())

	meds, err := s.ListMedicines(ctx, domain.ListOptions{SortBy: domain.SortExpiryDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"Old stock"}, names(meds))

	require.NoError(t, s.AdjustQuantity(ctx, id, 7))
	got, err = s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Quantity)
}

func TestMalformedReturnQuantitiesAreExcludedAndLogged(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	_, err = migrations.Run(ctx, db)
	require.NoError(t, err)
	var logs bytes.Buffer
	s := New(db, logging.New(logging.Config{Level: "warn", ServiceName: "test", Output: &logs}))

	price := decimal.RequireFromString("2.00")
	_, err = s.InsertSale(ctx, domain.Sale{MedicineID: 1, Name: "Napa", Quantity: 10, Price: price,
		Subtotal: price.Mul(decimal.NewFromInt(10)), Date: "2026-10-14", InvoiceID: "INV1"})
	require.NoError(t, err)
	_, err = s.InsertReturn(ctx, domain.Return{MedicineID: 1, Name: "Napa", Quantity: 1, Price: price,
		RefundAmount: price, Date: "2026-10-14", InvoiceID: "INV1"})
	require.NoError(t, err)
	for _, qty := range []string{`'3abc'`, `-2`, `2.5`} {
		_, err = db.Exec(`INSERT INTO returns (medicine_id, name, quantity, price, refund_amount, date, invoice_id)
            VALUES (1, 'Napa', ` + qty + `, 2.0, 0, '2026-10-14', 'INV1')`)
		require.NoError(t, err)
	}

	back, err := s.ReturnedQuantity(ctx, "INV1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), back)
	assert.Equal(t, 3, strings.Count(logs.String(), "skipping malformed return row"))

	logs.Reset()
	for _, q := range []SaleQuery{{InvoiceID: "INV1"}, {StartDate: "2026-10-01", EndDate: "2026-10-31"}} {
		recs, err := s.ReconciledSales(ctx, q)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, int64(1), recs[0].QtyReturned)
	}
	assert.Equal(t, 6, strings.Count(logs.String(), "skipping malformed return row"))
}
