package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/db"
	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/parse"
)

var testLabs = []config.LabConfig{
	{ID: "lab-1", Name: "Lab 1", Count: 2},
	{ID: "lab-3", Name: "Lab 3", Count: 1},
}

// expected record count after seeding: machines 0..Count per lab.
const testSeedCount = 3 + 2

func newRemoteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB, testLabs, zap.NewNop())
}

func newFallbackStore(t *testing.T) Store {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), testLabs, zap.NewNop())
	require.NoError(t, err)
	return s
}

// eachBackend runs the same assertions against the remote and the
// fallback store; the two must be indistinguishable for everything the
// conformance cases cover.
func eachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("remote", func(t *testing.T) { fn(t, newRemoteStore(t)) })
	t.Run("local", func(t *testing.T) { fn(t, newFallbackStore(t)) })
}

func snapshotAll(s Store) []model.MachineRecord {
	var snapshot []model.MachineRecord
	cancel := s.SubscribeToAllMachines(func(machines []model.MachineRecord) { snapshot = machines })
	cancel()
	return snapshot
}

func snapshotLab(s Store, labID string) []model.MachineRecord {
	var snapshot []model.MachineRecord
	cancel := s.SubscribeToLab(labID, func(machines []model.MachineRecord) { snapshot = machines })
	cancel()
	return snapshot
}

func snapshotHistory(s Store, labID string, number int) []model.MachineHistoryEntry {
	var snapshot []model.MachineHistoryEntry
	cancel := s.SubscribeToMachineHistory(labID, number, func(entries []model.MachineHistoryEntry) { snapshot = entries })
	cancel()
	return snapshot
}

func TestSeedingIdempotence(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))
		require.NoError(t, s.CheckAndSeedData(ctx))

		machines := snapshotAll(s)
		assert.Len(t, machines, testSeedCount, "second seed must be a no-op")

		seen := make(map[string]bool)
		for _, m := range machines {
			assert.False(t, seen[m.ID], "duplicate machine record %s", m.ID)
			seen[m.ID] = true
			assert.Equal(t, model.StatusOnline, m.Status)
			assert.Nil(t, m.Log)
		}
		assert.True(t, seen[parse.MachineKey("lab-1", 0)], "teacher unit must be seeded")
		assert.True(t, seen[parse.MachineKey("lab-3", 1)])
	})
}

func TestSeedingAfterUpdateStaysIdempotent(t *testing.T) {
	// Partial state (an existing lab-1 record) must block re-seeding:
	// the guard is an existence check, not a count check.
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))
		require.NoError(t, s.UpdateMachine(ctx, "lab-1", 1, model.StatusOffline, model.MachineLog{UpdatedBy: "tester"}))
		require.NoError(t, s.CheckAndSeedData(ctx))

		var offline *model.MachineRecord
		for _, m := range snapshotLab(s, "lab-1") {
			if m.MachineNumber == 1 {
				m := m
				offline = &m
			}
		}
		require.NotNil(t, offline)
		assert.Equal(t, model.StatusOffline, offline.Status, "seed must not overwrite mutated records")
	})
}

func TestUpdateMachineAppendsHistory(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))

		updates := []struct {
			status model.MachineStatus
			note   string
		}{
			{model.StatusError, "dead PSU"},
			{model.StatusMaintenance, "replacing mouse"},
			{model.StatusOnline, ""},
		}
		for i, u := range updates {
			log := model.MachineLog{
				Note:        u.note,
				UpdatedBy:   "Tester",
				LastUpdated: fmt.Sprintf("01/09/2026, 08:0%d", i),
			}
			require.NoError(t, s.UpdateMachine(ctx, "lab-1", 2, u.status, log))
		}

		history := snapshotHistory(s, "lab-1", 2)
		require.Len(t, history, len(updates), "one entry per update, exactly")

		// Newest first: history[0] is the last update.
		for i, entry := range history {
			u := updates[len(updates)-1-i]
			assert.Equal(t, u.status, entry.Status, "entry %d", i)
			assert.Equal(t, u.note, entry.Note, "entry %d", i)
			assert.Equal(t, "Tester", entry.UpdatedBy)
		}
		for i := 1; i < len(history); i++ {
			assert.False(t, history[i].Timestamp.After(history[i-1].Timestamp),
				"history must be ordered newest first")
		}

		// The record itself carries the last log wholesale.
		machines := snapshotLab(s, "lab-1")
		for _, m := range machines {
			if m.MachineNumber == 2 {
				assert.Equal(t, model.StatusOnline, m.Status)
				require.NotNil(t, m.Log)
				assert.Equal(t, "", m.Log.Note)
			}
		}
	})
}

func TestMachineSnapshotOrdering(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.CheckAndSeedData(context.Background()))

		all := snapshotAll(s)
		for i := 1; i < len(all); i++ {
			assert.LessOrEqual(t, all[i-1].ID, all[i].ID, "global snapshot sorts by id")
		}

		lab := snapshotLab(s, "lab-1")
		require.Len(t, lab, 3)
		for i, m := range lab {
			assert.Equal(t, "lab-1", m.LabID)
			assert.Equal(t, i, m.MachineNumber, "lab snapshot sorts by machine number")
		}
	})
}

func TestSubscriptionReplayAndDelivery(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))

		var snapshots [][]model.MachineRecord
		cancel := s.SubscribeToLab("lab-3", func(machines []model.MachineRecord) {
			snapshots = append(snapshots, machines)
		})
		defer cancel()

		require.Len(t, snapshots, 1, "replay fires exactly once at subscribe time")
		assert.Len(t, snapshots[0], 2)

		require.NoError(t, s.UpdateMachine(ctx, "lab-3", 0, model.StatusError, model.MachineLog{
			Issues: []string{"CPU"}, UpdatedBy: "Tester", LastUpdated: "x",
		}))
		require.Len(t, snapshots, 2, "a committed write notifies the subscriber")
		assert.Equal(t, model.StatusError, snapshots[1][0].Status)

		// Writes to other labs still notify (collection granularity),
		// but the lab projection must not change.
		require.NoError(t, s.UpdateMachine(ctx, "lab-1", 0, model.StatusOffline, model.MachineLog{UpdatedBy: "Tester"}))
		last := snapshots[len(snapshots)-1]
		assert.Len(t, last, 2)
		assert.Equal(t, "lab-3", last[0].LabID)
	})
}

func TestSubscriptionReplayOnEmptyStore(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		called := 0
		cancel := s.SubscribeToLab("lab-1", func(machines []model.MachineRecord) {
			called++
			assert.Empty(t, machines)
		})
		cancel()
		assert.Equal(t, 1, called, "replay fires once even with no data and no changes")
	})
}

func TestSubscriptionCancellation(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))

		calls := 0
		cancel := s.SubscribeToAllMachines(func([]model.MachineRecord) { calls++ })
		cancel()

		require.NoError(t, s.UpdateMachine(ctx, "lab-1", 0, model.StatusError, model.MachineLog{UpdatedBy: "Tester"}))
		assert.Equal(t, 1, calls, "no delivery after cancel")
	})
}

func TestIndependentSubscriptions(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))

		a, b := 0, 0
		cancelA := s.SubscribeToAllMachines(func([]model.MachineRecord) { a++ })
		cancelB := s.SubscribeToAllMachines(func([]model.MachineRecord) { b++ })
		cancelA()

		require.NoError(t, s.UpdateMachine(ctx, "lab-1", 1, model.StatusOffline, model.MachineLog{UpdatedBy: "Tester"}))
		assert.Equal(t, 1, a, "cancelled subscription stays silent")
		assert.Equal(t, 2, b, "sibling subscription keeps receiving")
		cancelB()
	})
}

func TestGlobalThemeDefaultAndUpdate(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		var current model.GlobalSettings
		cancel := s.SubscribeToGlobalSettings(func(settings model.GlobalSettings) { current = settings })
		defer cancel()

		assert.Equal(t, model.DefaultThemeID, current.ThemeID, "default substituted when unset")

		require.NoError(t, s.UpdateGlobalTheme(context.Background(), "christmas", "Tester"))
		assert.Equal(t, "christmas", current.ThemeID)
		assert.Equal(t, "Tester", current.UpdatedBy)
	})
}

func TestHistoryScopedPerMachine(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CheckAndSeedData(ctx))

		require.NoError(t, s.UpdateMachine(ctx, "lab-1", 1, model.StatusError, model.MachineLog{UpdatedBy: "A"}))
		require.NoError(t, s.UpdateMachine(ctx, "lab-3", 1, model.StatusMaintenance, model.MachineLog{UpdatedBy: "B"}))

		assert.Len(t, snapshotHistory(s, "lab-1", 1), 1)
		assert.Len(t, snapshotHistory(s, "lab-3", 1), 1)
		assert.Empty(t, snapshotHistory(s, "lab-1", 0))
	})
}
