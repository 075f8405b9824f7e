package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/observability"
	"github.com/seonyeopkim/asyncaction/store"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was created")

	version, err := j.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, j.Close())
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	for _, table := range []string{"runs", "events"} {
		var name string
		err := j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q present", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.BeginRun(context.Background(), Run{Demo: "counter"})
	assert.NoError(t, err)
}

func TestWriteAndReadRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, Run{ID: "run-1", Demo: "counter", Label: "unit"})
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	events := []observability.Event{
		{Type: "store.reduce", Level: observability.LevelVerbose, Source: "store", ChainID: "c-1", Seq: 2, Timestamp: ts,
			Data: map[string]any{"action": "increase", "step": 1}},
		{Type: "store.warning.off_loop", Level: observability.LevelWarning, Source: "store", ChainID: "c-1", Seq: 1, Timestamp: ts,
			Data: map[string]any{"action": "<increase>"}},
		{Type: "store.reduce", Level: observability.LevelVerbose, Source: "store", ChainID: "c-2", Seq: 3, Timestamp: ts},
	}
	for _, ev := range events {
		require.NoError(t, j.Write(ctx, run.ID, ev))
	}

	all, err := j.ReadRun(ctx, run.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Seq, all[1].Seq, all[2].Seq}, "ordered by seq")
	assert.Equal(t, "<increase>", all[0].Data["action"], "no HTML escaping round trip")
	assert.Equal(t, float64(1), all[1].Data["step"])
	assert.Nil(t, all[2].Data)
	assert.True(t, ts.Equal(all[0].Timestamp))

	chain, err := j.ReadRun(ctx, run.ID, Filter{ChainID: "c-1"})
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	warnings, err := j.ReadRun(ctx, run.ID, Filter{MinLevel: observability.LevelWarning})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, observability.EventType("store.warning.off_loop"), warnings[0].Type)

	reduces, err := j.ReadRun(ctx, run.ID, Filter{Type: "store.reduce"})
	require.NoError(t, err)
	assert.Len(t, reduces, 2)

	counts, err := j.CountByType(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[observability.EventType]int{
		"store.reduce":           2,
		"store.warning.off_loop": 1,
	}, counts)

	none, err := j.ReadRun(ctx, "missing", Filter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestWrite_UnknownRunFails(t *testing.T) {
	j := openTestJournal(t)

	err := j.Write(context.Background(), "nope", observability.Event{Type: "x"})
	assert.Error(t, err, "foreign key enforced")
}

func TestRuns_LatestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	_, err := j.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = j.BeginRun(ctx, Run{ID: "old", Demo: "counter", StartedAt: base})
	require.NoError(t, err)
	_, err = j.BeginRun(ctx, Run{ID: "new", Demo: "loader", StartedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	latest, err := j.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loader", latest.Demo)

	info, err := j.ReadRunInfo(ctx, "old")
	require.NoError(t, err)
	assert.True(t, base.Equal(info.StartedAt))

	_, err = j.ReadRunInfo(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestBeginRun_GeneratesID(t *testing.T) {
	j := openTestJournal(t)

	run, err := j.BeginRun(context.Background(), Run{Demo: "counter"})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRunObserver_RecordsStoreChain(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, Run{Demo: "loader"})
	require.NoError(t, err)
	obs := j.Observer(run.ID)

	s := demo.NewLoaderStore(demo.SimulatedFetch("X", 0, false),
		store.WithObserver(obs),
		store.WithChainIDs(store.NewSequentialChainIDs("")),
		store.WithLogger(observability.DiscardLogger()),
	)
	_, err = s.SendAndSettle(ctx, demo.RequestData{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, obs.Err())

	entries, err := j.ReadRun(ctx, run.ID, Filter{ChainID: "chain-1"})
	require.NoError(t, err)

	var types []observability.EventType
	for _, e := range entries {
		types = append(types, e.Type)
	}
	assert.Equal(t, []observability.EventType{
		store.EventReduce,
		store.EventRunStart,
		store.EventRunFinish,
		store.EventReduce,
	}, types)
	assert.Equal(t, "requestData", entries[0].Data["action"])
	assert.Equal(t, "update(X)", entries[3].Data["action"])
}

func TestRunObserver_KeepsFirstError(t *testing.T) {
	j := openTestJournal(t)
	obs := j.Observer("no-such-run")

	obs.OnEvent(context.Background(), observability.Event{Type: "a"})
	obs.OnEvent(context.Background(), observability.Event{Type: "b"})

	err := obs.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 journal writes failed")
	assert.Equal(t, "no-such-run", obs.RunID())
}
