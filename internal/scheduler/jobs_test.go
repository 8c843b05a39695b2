package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bastion/internal/modules/varmonitor"
)

func setupArchive(t *testing.T) (*varmonitor.Monitor, *varmonitor.Store) {
	t.Helper()

	cfg := varmonitor.DefaultConfig()
	cfg.Limit95Pct = 0.0001 // every snapshot breaches
	monitor := varmonitor.NewMonitor(cfg, nil, nil, zerolog.Nop())

	store, err := varmonitor.NewStore(filepath.Join(t.TempDir(), "risk.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return monitor, store
}

func TestSnapshotArchiveJobIdempotent(t *testing.T) {
	monitor, store := setupArchive(t)
	job := NewSnapshotArchiveJob(monitor, store, zerolog.Nop())

	monitor.ComputeSnapshot(10000, []varmonitor.Position{{Symbol: "BTCUSDT", SizeUSD: 5000}})

	require.NoError(t, job.Run())
	require.NoError(t, job.Run()) // second run must not duplicate

	snaps, err := store.RecentSnapshots(10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	breaches, err := store.RecentBreaches(10)
	require.NoError(t, err)
	assert.Len(t, breaches, 1)
}

func TestSnapshotArchiveJobPicksUpNewData(t *testing.T) {
	monitor, store := setupArchive(t)
	job := NewSnapshotArchiveJob(monitor, store, zerolog.Nop())

	monitor.ComputeSnapshot(10000, nil)
	require.NoError(t, job.Run())

	monitor.ComputeSnapshot(9900, nil)
	require.NoError(t, job.Run())

	snaps, err := store.RecentSnapshots(10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestSnapshotArchiveJobReArchivesAcknowledged(t *testing.T) {
	monitor, store := setupArchive(t)
	job := NewSnapshotArchiveJob(monitor, store, zerolog.Nop())

	monitor.ComputeSnapshot(10000, []varmonitor.Position{{Symbol: "BTCUSDT", SizeUSD: 5000}})
	require.NoError(t, job.Run())

	inMem := monitor.Breaches()
	require.NotEmpty(t, inMem)
	monitor.AcknowledgeBreach(inMem[0].ID)
	require.NoError(t, job.Run())

	archived, err := store.RecentBreaches(10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, archived[0].Acknowledged)
}

func TestArchivePruneJob(t *testing.T) {
	_, store := setupArchive(t)

	old := varmonitor.Snapshot{Timestamp: time.Now().Add(-72 * time.Hour), PortfolioValue: 9000}
	require.NoError(t, store.SaveSnapshot(old))
	require.NoError(t, store.SaveSnapshot(varmonitor.Snapshot{Timestamp: time.Now(), PortfolioValue: 10000}))

	job := NewArchivePruneJob(store, 24*time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	snaps, err := store.RecentSnapshots(10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 10000.0, snaps[0].PortfolioValue)
}
