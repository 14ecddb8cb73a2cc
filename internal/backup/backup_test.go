package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/m/internal/database"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/migrations"
)

func TestRunIsIdempotentPerDay(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	_, err = migrations.Run(ctx, db)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medicines (name, quantity, price) VALUES ('Zinc', 4, 1.5)`)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "backups")
	day := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	outcome, path, err := Run(ctx, db, dir, day)
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)
	assert.Equal(t, filepath.Join(dir, "pharmacy_2026-10-14.db"), path)

	ok, err := Verify(path)
	require.NoError(t, err)
	assert.True(t, ok)

	outcome, _, err = Run(ctx, db, dir, day.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)

	outcome, _, err = Run(ctx, db, dir, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)

	snap, err := database.Open(path)
	require.NoError(t, err)
	defer snap.Close()
	var count int
	require.NoError(t, snap.Get(&count, `SELECT COUNT(*) FROM medicines`))
	assert.Equal(t, 1, count)
}

func TestVerifyDetectsTampering(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dir := t.TempDir()

	_, path, err := Run(context.Background(), db, dir, time.Now())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	ok, err := Verify(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunBestEffortLogsFailure(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "info", ServiceName: "test", Output: &buf})
	RunBestEffort(context.Background(), db, t.TempDir(), time.Now(), logger)
	assert.Contains(t, buf.String(), "daily backup failed")
}

func TestRunBestEffortReverifiesExistingSnapshot(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dir := t.TempDir()
	now := time.Now()

	_, path, err := Run(context.Background(), db, dir, now)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0o644))

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "info", ServiceName: "test", Output: &buf})
	RunBestEffort(context.Background(), db, dir, now, logger)
	assert.Contains(t, buf.String(), "existing backup failed verification")
	assert.Contains(t, buf.String(), `"outcome":"skipped"`)
}
