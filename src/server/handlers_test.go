package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"RideLens/src/config"
	"RideLens/src/dataset"
	"RideLens/src/datasource/file"
	"RideLens/src/processor"
	"RideLens/src/storage"

	"github.com/stretchr/testify/assert"
)

const serverCSV = `Date,Time,Booking ID,Booking Status,Vehicle Type,Payment Method,Booking Value,Ride Distance,Driver Ratings,Avg CTAT,Reason for cancelling by Customer,Driver Cancellation Reason
2024-03-04,08:15:00,B1,Completed,Auto,UPI,100,5,4.5,8,,
2024-03-04,18:30:00,B2,Completed,Sedan,Cash,300,12,4.0,25,,
2024-03-05,09:00:00,B3,Completed,Auto,UPI,150,6,5.0,9,,
2024-04-06,13:00:00,B4,Cancelled by Customer,Auto,,0,0,,45,Driver not moving,
2024-04-07,23:10:00,B5,Cancelled by Driver,Bike,,0,0,,30,,Customer unreachable
`

var (
	testOnce   sync.Once
	testRouter http.Handler
)

// testServer loads a fixture dataset once per test binary (the store is a
// process-wide singleton) and serves it through the real router.
func testServer(t *testing.T) http.Handler {
	t.Helper()
	testOnce.Do(func() {
		dir, err := os.MkdirTemp("", "ridelens-server-test")
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "bookings.csv"), []byte(serverCSV), 0644); err != nil {
			t.Fatal(err)
		}

		cfg := &config.Config{}
		cfg.Data.Dir = dir
		cfg.Data.File = "bookings.csv"
		cols := config.DefaultColumns()

		store, err := dataset.Load(cfg, cols)
		if err != nil {
			t.Fatal(err)
		}

		logger, err := storage.NewLogger(filepath.Join(dir, "test.log"))
		if err != nil {
			t.Fatal(err)
		}

		testRouter = NewRouter(NewHandler(store, cols, logger), "")
	})
	if testRouter == nil {
		t.Fatal("test server failed to initialize")
	}
	return testRouter
}

func getJSON(t *testing.T, router http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Warning string          `json:"warning"`
}

func TestGetMetrics(t *testing.T) {
	router := testServer(t)

	var env envelope
	w := getJSON(t, router, "/api/metrics", &env)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.Warning)

	var m map[string]float64
	assert.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 5.0, m["total_rides"])
	assert.InDelta(t, 60.0, m["success_rate"], 0.001)
	assert.InDelta(t, 20.0, m["customer_cancellation_rate"], 0.001)
	assert.InDelta(t, 20.0, m["driver_cancellation_rate"], 0.001)
	assert.InDelta(t, 110.0, m["avg_revenue"], 0.001)
}

func TestGetMetricsFiltered(t *testing.T) {
	router := testServer(t)

	var env envelope
	w := getJSON(t, router, "/api/metrics?vehicle=Auto", &env)
	assert.Equal(t, http.StatusOK, w.Code)

	var m map[string]float64
	assert.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 3.0, m["total_rides"])
}

func TestEmptySelectionFallsBack(t *testing.T) {
	router := testServer(t)

	var env envelope
	w := getJSON(t, router, "/api/metrics?vehicle=Rickshaw", &env)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, emptySelectionWarning, env.Warning)

	var m map[string]float64
	assert.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 5.0, m["total_rides"], "empty selection serves the full dataset")
}

func TestGetVolumeGranularity(t *testing.T) {
	router := testServer(t)

	var env envelope
	getJSON(t, router, "/api/volume", &env)

	var points []map[string]interface{}
	assert.NoError(t, json.Unmarshal(env.Data, &points))
	assert.Len(t, points, 24, "hour buckets cover the whole day")

	w := getJSON(t, router, "/api/volume?granularity=Decade", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCancelReasons(t *testing.T) {
	router := testServer(t)

	var env envelope
	getJSON(t, router, "/api/cancel-reasons?side=driver", &env)

	var reasons []map[string]interface{}
	assert.NoError(t, json.Unmarshal(env.Data, &reasons))
	assert.Len(t, reasons, 1)
	assert.Equal(t, "Customer unreachable", reasons[0]["reason"])

	w := getJSON(t, router, "/api/cancel-reasons?side=nobody", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFilters(t *testing.T) {
	router := testServer(t)

	var f struct {
		VehicleTypes   []string `json:"vehicle_types"`
		Statuses       []string `json:"statuses"`
		PaymentMethods []string `json:"payment_methods"`
		DateMin        string   `json:"date_min"`
		DateMax        string   `json:"date_max"`
		HighValueOK    bool     `json:"high_value_ok"`
		Rows           int      `json:"rows"`
	}
	w := getJSON(t, router, "/api/filters", &f)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"Auto", "Bike", "Sedan"}, f.VehicleTypes)
	assert.Contains(t, f.PaymentMethods, "No Payment")
	assert.Equal(t, "2024-03-04", f.DateMin)
	assert.Equal(t, "2024-04-07", f.DateMax)
	assert.True(t, f.HighValueOK)
	assert.Equal(t, 5, f.Rows)
}

func TestGetExportCSV(t *testing.T) {
	router := testServer(t)

	w := getJSON(t, router, "/api/export?vehicle=Bike", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filtered_ride_bookings.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 2, "header plus the single Bike row")
	assert.Contains(t, lines[1], "B5")
}

func TestGetExportRoundTrip(t *testing.T) {
	router := testServer(t)

	w := getJSON(t, router, "/api/export?vehicle=Auto&status=Completed", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	path := filepath.Join(t.TempDir(), "export.csv")
	assert.NoError(t, os.WriteFile(path, w.Body.Bytes(), 0644))

	cols := config.DefaultColumns()
	raw, err := file.ReadCSV(path, dataset.NumericColumns(cols))
	assert.NoError(t, err)
	df, err := processor.AddDerivedFeatures(raw, cols)
	assert.NoError(t, err)

	// the reloaded view carries the same rows and source values; derived
	// columns regenerate to the same contents
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"B1", "B3"}, df.Col("Booking ID").Records())
	assert.Equal(t, []string{"Completed", "Completed"}, df.Col("Booking Status").Records())
	assert.Equal(t, []float64{100, 150}, df.Col(cols.Get("booking_value")).Float())
	assert.Equal(t, []string{"2024-03-04 08:15:00", "2024-03-05 09:00:00"}, df.Col(processor.ColTimestamp).Records())
	assert.Equal(t, []float64{100, 150}, df.Col(processor.ColRevenue).Float())
}

func TestGetExportFlagsEmptySelectionFallback(t *testing.T) {
	router := testServer(t)

	w := getJSON(t, router, "/api/export?vehicle=Rickshaw", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, emptySelectionWarning, w.Header().Get("X-Filter-Warning"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 6, "header plus all five fallback rows")
}

func TestGetExportUnknownFormat(t *testing.T) {
	router := testServer(t)
	w := getJSON(t, router, "/api/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBadHourRange(t *testing.T) {
	router := testServer(t)
	w := getJSON(t, router, "/api/metrics?hour_from=9&hour_to=2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostReload(t *testing.T) {
	router := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":5`)
}
