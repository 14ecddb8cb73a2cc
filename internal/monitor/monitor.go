// Package monitor periodically re-reads the inventory for the dashboard.
// It never writes and tolerates observing a checkout half way through.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pharmacy/m/domain"
	"pharmacy/m/internal/logging"
)

// Summary is the dashboard view of the inventory at one instant.
type Summary struct {
	TotalMedicines int       `json:"total_medicines"`
	Expired        []string  `json:"expired"`
	NearExpiry     []string  `json:"near_expiry"`
	LowStock       []string  `json:"low_stock"`
	InvalidExpiry  []string  `json:"invalid_expiry"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Summarize classifies every medicine by expiry and stock level. A
// medicine can appear in both an expiry list and LowStock.
func Summarize(meds []domain.Medicine, today time.Time, lowStock int64, nearDays int) Summary {
	s := Summary{
		TotalMedicines: len(meds),
		Expired:        []string{},
		NearExpiry:     []string{},
		LowStock:       []string{},
		InvalidExpiry:  []string{},
		GeneratedAt:    today,
	}
	for _, m := range meds {
		switch status, _ := domain.ClassifyExpiry(m.ExpiryDate, today, nearDays); status {
		case domain.ExpiryExpired:
			s.Expired = append(s.Expired, m.Name)
		case domain.ExpiryNear:
			s.NearExpiry = append(s.NearExpiry, m.Name)
		case domain.ExpiryInvalid:
			s.InvalidExpiry = append(s.InvalidExpiry, m.Name)
		}
		if m.Quantity < lowStock {
			s.LowStock = append(s.LowStock, m.Name)
		}
	}
	return s
}

// Lister is the read-only inventory view the refresher needs.
type Lister interface {
	ListMedicines(ctx context.Context, opts domain.ListOptions) ([]domain.Medicine, error)
}

type Refresher struct {
	lister   Lister
	interval time.Duration
	lowStock int64
	nearDays int
	clock    func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	latest Summary
}

func NewRefresher(lister Lister, interval time.Duration, lowStock int64, nearDays int, logger *slog.Logger) *Refresher {
	return &Refresher{
		lister:   lister,
		interval: interval,
		lowStock: lowStock,
		nearDays: nearDays,
		clock:    time.Now,
		logger:   logging.OrDiscard(logger),
	}
}

// Refresh reads the inventory once and publishes the new summary.
func (r *Refresher) Refresh(ctx context.Context) (Summary, error) {
	meds, err := r.lister.ListMedicines(ctx, domain.ListOptions{})
	if err != nil {
		return Summary{}, err
	}
	s := Summarize(meds, r.clock(), r.lowStock, r.nearDays)

	r.mu.Lock()
	r.latest = s
	r.mu.Unlock()

	r.logger.Info("inventory refreshed",
		"total", s.TotalMedicines,
		"expired", len(s.Expired),
		"near_expiry", len(s.NearExpiry),
		"low_stock", len(s.LowStock))
	return s, nil
}

// Latest returns the most recent summary, zero before the first refresh.
func (r *Refresher) Latest() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Run refreshes immediately and then on every tick until ctx is done.
// Read failures are logged and the loop keeps going.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("inventory refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
