package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/varmonitor"
)

// SnapshotArchiveJob copies VaR snapshots and breaches from the monitor's
// in-memory rings into the sqlite archive. It tracks the last archived
// snapshot timestamp so repeated runs never write duplicates.
type SnapshotArchiveJob struct {
	monitor *varmonitor.Monitor
	store   *varmonitor.Store
	log     zerolog.Logger

	lastSnapshot time.Time
	archivedIDs  map[string]bool
}

// NewSnapshotArchiveJob creates a new snapshot archive job
func NewSnapshotArchiveJob(monitor *varmonitor.Monitor, store *varmonitor.Store, log zerolog.Logger) *SnapshotArchiveJob {
	return &SnapshotArchiveJob{
		monitor:     monitor,
		store:       store,
		log:         log.With().Str("job", "snapshot_archive").Logger(),
		archivedIDs: make(map[string]bool),
	}
}

// Name returns the job name
func (j *SnapshotArchiveJob) Name() string { return "snapshot_archive" }

// Run archives snapshots and breaches newer than the previous run
func (j *SnapshotArchiveJob) Run() error {
	archived := 0
	for _, snap := range j.monitor.Snapshots(0) {
		if !snap.Timestamp.After(j.lastSnapshot) {
			continue
		}
		if err := j.store.SaveSnapshot(snap); err != nil {
			return fmt.Errorf("failed to archive snapshot: %w", err)
		}
		j.lastSnapshot = snap.Timestamp
		archived++
	}

	breaches := 0
	for _, b := range j.monitor.Breaches() {
		if j.archivedIDs[b.ID] && !b.Acknowledged {
			continue
		}
		if err := j.store.SaveBreach(b); err != nil {
			return fmt.Errorf("failed to archive breach: %w", err)
		}
		j.archivedIDs[b.ID] = true
		breaches++
	}

	if archived > 0 || breaches > 0 {
		j.log.Info().
			Int("snapshots", archived).
			Int("breaches", breaches).
			Msg("Archived risk history")
	}
	return nil
}

// ArchivePruneJob deletes archived rows older than the retention window.
type ArchivePruneJob struct {
	store     *varmonitor.Store
	retention time.Duration
	log       zerolog.Logger
}

// NewArchivePruneJob creates a new archive prune job
func NewArchivePruneJob(store *varmonitor.Store, retention time.Duration, log zerolog.Logger) *ArchivePruneJob {
	return &ArchivePruneJob{
		store:     store,
		retention: retention,
		log:       log.With().Str("job", "archive_prune").Logger(),
	}
}

// Name returns the job name
func (j *ArchivePruneJob) Name() string { return "archive_prune" }

// Run prunes expired archive rows
func (j *ArchivePruneJob) Run() error {
	removed, err := j.store.Prune(j.retention)
	if err != nil {
		return fmt.Errorf("failed to prune archive: %w", err)
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned risk archive")
	}
	return nil
}
