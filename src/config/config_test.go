package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfgJSON := `{
		"server": {"addr": ":9090"},
		"data": {"dir": "./data", "file": "bookings.csv", "sheet": "Sheet1", "watch": true},
		"email": {"enabled": true, "server": "imap.example.com:993", "username": "u", "password": "p",
			"target_subject": "Bookings Export", "check_interval": "15m"},
		"push": {"enabled": false, "webhook_url": "", "interval": "24h"},
		"log_name": "app.log",
		"log_max_size": "10 * 1024 * 1024"
	}`
	colsJSON := `{"dataset": {"status": "Ride Status"}}`

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfgJSON), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "columns.json"), []byte(colsJSON), 0644))

	cfg, cols, err := LoadConfig(dir, "config.json", "columns.json")
	assert.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "bookings.csv", cfg.Data.File)
	assert.True(t, cfg.Data.Watch)
	assert.Equal(t, 15*time.Minute, time.Duration(cfg.Email.CheckInterval))
	assert.Equal(t, 24*time.Hour, time.Duration(cfg.Push.Interval))
	assert.Equal(t, "10 * 1024 * 1024", cfg.LogMaxSize)

	assert.Equal(t, "Ride Status", cols.Get("status"))
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	assert.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(5 * time.Minute)
	data, err := json.Marshal(d)
	assert.NoError(t, err)
	assert.Equal(t, `"5m0s"`, string(data))
}

func TestColumnsGetFallsBackToKey(t *testing.T) {
	cols := &Columns{Dataset: map[string]string{"status": "Booking Status"}}
	assert.Equal(t, "Booking Status", cols.Get("status"))
	assert.Equal(t, "unknown_key", cols.Get("unknown_key"))
}

func TestDefaultColumns(t *testing.T) {
	cols := DefaultColumns()
	assert.Equal(t, "Booking Status", cols.Get("status"))
	assert.Equal(t, "Avg CTAT", cols.Get("duration"))
	assert.Equal(t, "Driver Ratings", cols.Get("driver_rating"))
}
