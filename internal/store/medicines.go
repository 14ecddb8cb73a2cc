package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmacy/m/domain"
)

// medicineColumns tolerates the nullable columns of inventories created
// before the ledger existed.
const medicineColumns = `id, name, COALESCE(batch_no, '') AS batch_no, COALESCE(mfg_date, '') AS mfg_date,
        COALESCE(expiry_date, '') AS expiry_date, COALESCE(quantity, 0) AS quantity,
        COALESCE(price, 0) AS price, COALESCE(demand, '') AS demand`

// CreateMedicine inserts m and returns it with its new id.
func (s *Store) CreateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO medicines (name, batch_no, mfg_date, expiry_date, quantity, price, demand) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.BatchNo, m.MfgDate, m.ExpiryDate, m.Quantity, m.Price, m.Demand)
	if err != nil {
		return domain.Medicine{}, storageErr("insert medicine", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Medicine{}, storageErr("insert medicine", err)
	}
	m.ID = id
	return m, nil
}

// UpdateMedicine overwrites every mutable field of the medicine with m.ID.
func (s *Store) UpdateMedicine(ctx context.Context, m domain.Medicine) error {
	res, err := s.q.ExecContext(ctx, `UPDATE medicines SET name = ?, batch_no = ?, mfg_date = ?, expiry_date = ?, quantity = ?, price = ?, demand = ? WHERE id = ?`,
		m.Name, m.BatchNo, m.MfgDate, m.ExpiryDate, m.Quantity, m.Price, m.Demand, m.ID)
	if err != nil {
		return storageErr("update medicine", err)
	}
	return requireAffected(res, m.ID)
}

// DeleteMedicine removes the medicine row. Ledger rows that reference it
// are left in place.
func (s *Store) DeleteMedicine(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM medicines WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete medicine", err)
	}
	return requireAffected(res, id)
}

// AdjustQuantity adds delta (possibly negative) to the on-hand quantity.
func (s *Store) AdjustQuantity(ctx context.Context, id int64, delta int64) error {
	res, err := s.q.ExecContext(ctx, `UPDATE medicines SET quantity = COALESCE(quantity, 0) + ? WHERE id = ?`, delta, id)
	if err != nil {
		return storageErr("adjust quantity", err)
	}
	return requireAffected(res, id)
}

func (s *Store) FindByID(ctx context.Context, id int64) (domain.Medicine, error) {
	var m domain.Medicine
	err := sqlx.GetContext(ctx, s.q, &m, `SELECT `+medicineColumns+` FROM medicines WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medicine{}, fmt.Errorf("%w: id %d", domain.ErrMedicineNotFound, id)
	}
	if err != nil {
		return domain.Medicine{}, storageErr("load medicine", err)
	}
	return m, nil
}

// MedicinesByIDs loads the listed medicines keyed by id. Missing ids are
// simply absent from the result.
func (s *Store) MedicinesByIDs(ctx context.Context, ids []int64) (map[int64]domain.Medicine, error) {
	out := make(map[int64]domain.Medicine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+medicineColumns+` FROM medicines WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare medicine lookup: %w", err)
	}
	var meds []domain.Medicine
	if err := sqlx.SelectContext(ctx, s.q, &meds, s.q.Rebind(query), args...); err != nil {
		return nil, storageErr("load medicines", err)
	}
	for _, m := range meds {
		out[m.ID] = m
	}
	return out, nil
}

// ListMedicines applies the numeric filters and sort order in SQL and the
// expiry status filter in Go.
func (s *Store) ListMedicines(ctx context.Context, opts domain.ListOptions) ([]domain.Medicine, error) {
	var (
		args    []any
		clauses []string
	)
	if opts.MinQuantity != nil {
		args = append(args, *opts.MinQuantity)
		clauses = append(clauses, "quantity >= ?")
	}
	if opts.MaxQuantity != nil {
		args = append(args, *opts.MaxQuantity)
		clauses = append(clauses, "quantity <= ?")
	}
	if opts.MinPrice != nil {
		args = append(args, *opts.MinPrice)
		clauses = append(clauses, "price >= CAST(? AS REAL)")
	}
	if opts.MaxPrice != nil {
		args = append(args, *opts.MaxPrice)
		clauses = append(clauses, "price <= CAST(? AS REAL)")
	}

	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY " + orderClause(opts.SortBy, opts.Descending)

	var meds []domain.Medicine
	if err := sqlx.SelectContext(ctx, s.q, &meds, query, args...); err != nil {
		return nil, storageErr("list medicines", err)
	}
	if opts.Status == "" {
		return meds, nil
	}

	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}
	filtered := meds[:0]
	for _, m := range meds {
		if status, _ := domain.ClassifyExpiry(m.ExpiryDate, today, opts.NearExpiryDays); status == opts.Status {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// SearchMedicines matches query case-insensitively against name or batch.
func (s *Store) SearchMedicines(ctx context.Context, query string) ([]domain.Medicine, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var meds []domain.Medicine
	err := sqlx.SelectContext(ctx, s.q, &meds, `SELECT `+medicineColumns+` FROM medicines WHERE LOWER(name) LIKE ? OR LOWER(batch_no) LIKE ? ORDER BY id`, like, like)
	if err != nil {
		return nil, storageErr("search medicines", err)
	}
	return meds, nil
}

// orderClause builds a fixed ORDER BY; unparseable dates sort before valid
// ones when ascending.
func orderClause(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case domain.SortName:
		return "LOWER(name) " + dir + ", id"
	case domain.SortBatch:
		return "LOWER(batch_no) " + dir + ", id"
	case domain.SortQuantity:
		return "quantity " + dir + ", id"
	case domain.SortPrice:
		return "price " + dir + ", id"
	case domain.SortMfgDate, domain.SortExpiryDate:
		col := "mfg_date"
		if sortBy == domain.SortExpiryDate {
			col = "expiry_date"
		}
		return fmt.Sprintf("(date(%[1]s) IS NOT NULL) %[2]s, %[1]s %[2]s, id", col, dir)
	}
	return "id"
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrMedicineNotFound, id)
	}
	return nil
}
