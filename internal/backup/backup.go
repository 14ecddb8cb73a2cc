// Package backup writes at most one consistent database snapshot per
// calendar day.
package backup

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/blake2b"

	"pharmacy/m/internal/logging"
)

type Outcome string

const (
	Created Outcome = "created"
	Skipped Outcome = "skipped"
)

const digestSuffix = ".blake2b"

// PathFor returns the snapshot path for the day of now.
func PathFor(dir string, now time.Time) string {
	return filepath.Join(dir, "pharmacy_"+now.Format("2006-01-02")+".db")
}

// Run snapshots db into dir unless today's snapshot already exists, and
// writes a blake2b-256 digest next to it.
func Run(ctx context.Context, db *sqlx.DB, dir string, now time.Time) (Outcome, string, error) {
	target := PathFor(dir, now)
	if _, err := os.Stat(target); err == nil {
		return Skipped, target, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", target, fmt.Errorf("stat backup: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", target, fmt.Errorf("create backup dir: %w", err)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, target); err != nil {
		_ = os.Remove(target)
		return "", target, fmt.Errorf("snapshot database: %w", err)
	}

	sum, err := digestFile(target)
	if err != nil {
		return "", target, err
	}
	if err := os.WriteFile(target+digestSuffix, []byte(sum+"\n"), 0o644); err != nil {
		return "", target, fmt.Errorf("write digest: %w", err)
	}
	return Created, target, nil
}

// RunBestEffort is Run for process start: failures are logged, never
// returned. A snapshot already present for today is re-verified.
func RunBestEffort(ctx context.Context, db *sqlx.DB, dir string, now time.Time, logger *slog.Logger) {
	logger = logging.OrDiscard(logger)
	outcome, target, err := Run(ctx, db, dir, now)
	if err != nil {
		logger.Error("daily backup failed", "path", target, "error", err)
		return
	}
	if outcome == Skipped {
		if ok, err := Verify(target); err != nil || !ok {
			logger.Warn("existing backup failed verification", "path", target, "error", err)
		}
	}
	logger.Info("daily backup", "outcome", string(outcome), "path", target)
}

// Verify recomputes the digest of a snapshot and compares it with its sidecar.
func Verify(path string) (bool, error) {
	want, err := os.ReadFile(path + digestSuffix)
	if err != nil {
		return false, fmt.Errorf("read digest: %w", err)
	}
	got, err := digestFile(path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(want)) == got, nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash backup: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
