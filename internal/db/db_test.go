package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/detector"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	database := setupTestDB(t)

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var name string
	err = database.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_motion_events_source_signal'`).Scan(&name)
	require.NoError(t, err)

	// reopening an up-to-date database is a no-op
	require.NoError(t, database.MigrateUp(MigrationsFS()))
}

func TestMigrateDownAndForce(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer database.Close()

	migrations := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE IF EXISTS t1;")},
		"000002_col.up.sql":    &fstest.MapFile{Data: []byte("ALTER TABLE t1 ADD COLUMN note TEXT;")},
		"000002_col.down.sql":  &fstest.MapFile{Data: []byte("ALTER TABLE t1 DROP COLUMN note;")},
	}

	version, _, err := database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, database.MigrateUp(migrations))
	require.NoError(t, database.MigrateDown(migrations))

	version, dirty, err := database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, database.MigrateForce(migrations, 2))
	version, _, err = database.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestNewMigrate_ClosedDB(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	database.Close()

	assert.Error(t, database.MigrateUp(MigrationsFS()))
}

func TestRecordEvent(t *testing.T) {
	database := setupTestDB(t)

	at := time.UnixMicro(1700000000000000)
	id, err := database.RecordEvent(Event{
		Source:     SourceAPI,
		Signal:     detector.SignalJump,
		Reading:    -10,
		Mean:       0.8,
		StdDev:     2.4,
		LatencyUs:  1500,
		ProducedAt: at,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated id should be a uuid")

	events, err := database.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{
		EventID:    id,
		Source:     SourceAPI,
		Signal:     detector.SignalJump,
		Reading:    -10,
		Mean:       0.8,
		StdDev:     2.4,
		LatencyUs:  1500,
		ProducedAt: at,
	}, events[0])
}

func TestRecordEvent_RejectsNone(t *testing.T) {
	database := setupTestDB(t)

	_, err := database.RecordEvent(Event{Source: SourceAPI, Signal: detector.SignalNone})
	assert.Error(t, err)

	_, err = database.RecordEvent(Event{EventID: "dup", Source: SourceAPI, Signal: detector.SignalStep})
	require.NoError(t, err)
	_, err = database.RecordEvent(Event{EventID: "dup", Source: SourceAPI, Signal: detector.SignalStep})
	assert.Error(t, err, "duplicate event id")
}

func TestRecentEvents_OrderAndLimit(t *testing.T) {
	database := setupTestDB(t)

	base := time.UnixMicro(1700000000000000)
	for i := 0; i < 5; i++ {
		_, err := database.RecordEvent(Event{
			EventID:    string(rune('a' + i)),
			Source:     SourceSerial,
			Signal:     detector.SignalStep,
			ProducedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	events, err := database.RecentEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e", events[0].EventID)
	assert.Equal(t, "d", events[1].EventID)
	assert.Equal(t, "c", events[2].EventID)

	empty := setupTestDB(t)
	none, err := empty.RecentEvents(0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEventCounts(t *testing.T) {
	database := setupTestDB(t)

	counts, err := database.EventCounts("")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)

	record := func(source string, s detector.Signal) {
		_, err := database.RecordEvent(Event{Source: source, Signal: s})
		require.NoError(t, err)
	}
	record(SourceAPI, detector.SignalStep)
	record(SourceAPI, detector.SignalStep)
	record(SourceAPI, detector.SignalJump)
	record(SourceSerial, detector.SignalJump)

	counts, err = database.EventCounts("")
	require.NoError(t, err)
	assert.Equal(t, Counts{Steps: 2, Jumps: 2}, counts)

	counts, err = database.EventCounts(SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, Counts{Steps: 2, Jumps: 1}, counts)

	counts, err = database.EventCounts(SourceSerial)
	require.NoError(t, err)
	assert.Equal(t, Counts{Steps: 0, Jumps: 1}, counts)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	database := setupTestDB(t)
	_, err := database.RecordEvent(Event{Source: SourceAPI, Signal: detector.SignalStep})
	require.NoError(t, err)

	mux := http.NewServeMux()
	database.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
