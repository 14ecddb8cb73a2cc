package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmacy/m/domain"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/store"
)

// LoadMedicines imports name,batch_no,mfg_date,expiry_date,quantity,price,demand
// rows into the inventory inside one transaction. Malformed rows are logged
// and skipped.
func LoadMedicines(ctx context.Context, st *store.Store, csvPath string, logger *slog.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open medicine csv %s: %w", csvPath, err)
	}
	defer file.Close()

	rows, err := loadFrom(ctx, st, file, logging.OrDiscard(logger))
	if err != nil {
		return 0, fmt.Errorf("load medicine csv %s: %w", csvPath, err)
	}
	logging.OrDiscard(logger).Info("seeded medicine inventory", "rows", rows, "path", csvPath)
	return rows, nil
}

// loadFrom stops at the first read failure that is not a malformed row.
func loadFrom(ctx context.Context, st *store.Store, src io.Reader, logger *slog.Logger) (int, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read medicine header: %w", err)
	}

	rows := 0
	err := st.InTx(ctx, func(tx *store.Store) error {
		line := 1
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			line++
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("unable to read medicine row", "line", line, "error", err)
				continue
			}
			if err != nil {
				return fmt.Errorf("read medicine row %d: %w", line, err)
			}
			med, err := parseRecord(record)
			if err != nil {
				logger.Warn("skipping medicine row", "line", line, "error", err)
				continue
			}
			if _, err := tx.CreateMedicine(ctx, med); err != nil {
				return err
			}
			rows++
		}
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func parseRecord(record []string) (domain.Medicine, error) {
	if len(record) < 6 {
		return domain.Medicine{}, fmt.Errorf("expected at least 6 columns, got %d", len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	if record[0] == "" {
		return domain.Medicine{}, errors.New("name is required")
	}
	qty, err := strconv.ParseInt(record[4], 10, 64)
	if err != nil || qty < 0 {
		return domain.Medicine{}, fmt.Errorf("%w: quantity %q", domain.ErrInvalidQuantityOrPrice, record[4])
	}
	price := decimal.Zero
	if record[5] != "" {
		price, err = decimal.NewFromString(record[5])
		if err != nil || price.IsNegative() {
			return domain.Medicine{}, fmt.Errorf("%w: price %q", domain.ErrInvalidQuantityOrPrice, record[5])
		}
	}
	med := domain.Medicine{
		Name:       record[0],
		BatchNo:    record[1],
		MfgDate:    record[2],
		ExpiryDate: record[3],
		Quantity:   qty,
		Price:      price,
	}
	if len(record) > 6 {
		med.Demand = record[6]
	}
	return med, nil
}
