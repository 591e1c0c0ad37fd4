package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autodash/simulator/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := GetSqliteDBStandalone(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, Setup(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestSetup_MigratesAllTables(t *testing.T) {
	db := openTestDB(t)
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestSetup_NilDB(t *testing.T) {
	assert.Error(t, Setup(nil))
}

func TestPostgresDSN(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "pg")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "u")
	viper.Set("db.password", "p")
	viper.Set("db.database", "autodash")

	assert.Equal(t, "host=pg port=5433 user=u password=p dbname=autodash sslmode=disable", PostgresDSN())
}

func TestLoadSession(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&model.Session{
		ID:             "sess-1",
		VehicleName:    "AD-01",
		StartTime:      start,
		EndTime:        sql.NullTime{Time: start.Add(time.Minute), Valid: true},
		TickIntervalMs: 250,
		Route:          datatypes.JSON(`[{"x":10,"y":90}]`),
	}).Error)
	for _, tick := range []uint64{3, 1, 2} {
		require.NoError(t, db.Create(&model.TelemetryFrame{
			SessionID: "sess-1",
			Tick:      tick,
			Time:      start.Add(time.Duration(tick) * 250 * time.Millisecond),
			Gear:      "D",
			Speed:     float64(40 + tick),
			Obstacles: datatypes.JSON("[]"),
			Warnings:  datatypes.JSON("[]"),
		}).Error)
	}
	require.NoError(t, db.Create(&model.TelemetryFrame{
		SessionID: "other", Tick: 1, Obstacles: datatypes.JSON("[]"), Warnings: datatypes.JSON("[]"),
	}).Error)
	require.NoError(t, db.Create(&model.WarningEvent{
		SessionID: "sess-1", Tick: 2, Level: "critical", Message: "Low battery", Raised: true,
	}).Error)

	rec, err := LoadSession(db, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "AD-01", rec.Session.VehicleName)
	assert.True(t, rec.Session.EndTime.Valid)
	require.Len(t, rec.Frames, 3)
	assert.Equal(t, uint64(1), rec.Frames[0].Tick)
	assert.Equal(t, uint64(3), rec.Frames[2].Tick)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, "Low battery", rec.Warnings[0].Message)
}

func TestLoadSession_Missing(t *testing.T) {
	db := openTestDB(t)
	_, err := LoadSession(db, "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	require.NoError(t, Setup(db))
	require.NoError(t, db.Create(&model.Session{ID: "dumped", Route: datatypes.JSON("[]")}).Error)

	path := filepath.Join(t.TempDir(), "out", "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.Session{}).Where("id = ?", "dumped").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	assert.ErrorIs(t, DumpMemoryDBToDisk(nil, ""), ErrNoDumpPath)
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt", ".db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.db"),
		filepath.Join(dir, "b.db"),
		filepath.Join(dir, ".db"),
	}, paths)
}

func TestGetBackupDBPaths_MissingDir(t *testing.T) {
	_, err := GetBackupDBPaths(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestManager_FallsBackToSQLite(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "127.0.0.1")
	viper.Set("db.port", "1")

	path := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.Connect())
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Session{}))
}
