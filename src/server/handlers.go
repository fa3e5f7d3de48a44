package server

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"RideLens/src/config"
	"RideLens/src/dataset"
	"RideLens/src/processor"
	"RideLens/src/storage"
	"RideLens/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-gota/gota/dataframe"
)

const emptySelectionWarning = "No data matches the selected filters. Showing all data instead."

// Handler answers the dashboard API. Every data route parses the filter
// query contract, applies it to the loaded frame and runs the requested
// aggregation on the filtered view.
type Handler struct {
	Store  *dataset.Store
	Cols   *config.Columns
	Logger *storage.Logger
}

func NewHandler(store *dataset.Store, cols *config.Columns, logger *storage.Logger) *Handler {
	return &Handler{Store: store, Cols: cols, Logger: logger}
}

// filteredFrame applies the request filter. An empty result falls back to
// the full dataset and the returned warning is set.
func (h *Handler) filteredFrame(c *gin.Context) (dataframe.DataFrame, string, error) {
	f, err := FilterFromQuery(c)
	if err != nil {
		return dataframe.DataFrame{}, "", err
	}
	full := h.Store.Frame()
	filtered := f.Apply(full, h.Cols)
	if filtered.Nrow() == 0 && full.Nrow() > 0 {
		return full, emptySelectionWarning, nil
	}
	return filtered, "", nil
}

func respond(c *gin.Context, data interface{}, warning string) {
	body := gin.H{"data": data}
	if warning != "" {
		body["warning"] = warning
	}
	c.JSON(http.StatusOK, body)
}

func abortBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	m := processor.CalculateRideMetrics(df, h.Cols)
	respond(c, m, warning)
}

func (h *Handler) GetVolume(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	g := processor.Granularity(c.DefaultQuery("granularity", string(processor.GranularityHour)))
	points, err := processor.PrepareVolumeData(df, g)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, points, warning)
}

func (h *Handler) GetVehicleTypes(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, processor.VehicleTypeMetrics(df, h.Cols), warning)
}

func (h *Handler) GetStatusBreakdown(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, processor.StatusBreakdown(df, h.Cols), warning)
}

func (h *Handler) GetRevenueByVehicle(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, processor.RevenueByVehicleType(df, h.Cols), warning)
}

func (h *Handler) GetRevenueDistribution(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, processor.RevenueDistribution(df), warning)
}

func (h *Handler) GetCancelReasons(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	side := processor.CancellationSide(c.DefaultQuery("side", string(processor.CustomerSide)))
	counts, err := processor.CancellationReasonCounts(df, h.Cols, side)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, counts, warning)
}

func (h *Handler) GetMonthlyTrends(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	respond(c, processor.MonthlyTrends(df, h.Cols), warning)
}

// GetFilters reports the selectable values of the full dataset so the page
// can build its controls: distinct vehicle types, statuses and payment
// methods plus the covered date range.
func (h *Handler) GetFilters(c *gin.Context) {
	df := h.Store.Frame()

	minDate, maxDate := "", ""
	if utils.HasColumn(df, processor.ColTimestamp) {
		for _, ts := range df.Col(processor.ColTimestamp).Records() {
			if len(ts) < 10 {
				continue
			}
			date := ts[:10]
			if minDate == "" || date < minDate {
				minDate = date
			}
			if date > maxDate {
				maxDate = date
			}
		}
	}

	threshold, thresholdOK := h.Store.HighValueThreshold()

	c.JSON(http.StatusOK, gin.H{
		"vehicle_types":        distinctValues(df, h.Cols.Get("vehicle_type")),
		"statuses":             distinctValues(df, h.Cols.Get("status")),
		"payment_methods":      distinctValues(df, h.Cols.Get("payment_method")),
		"date_min":             minDate,
		"date_max":             maxDate,
		"high_value_threshold": threshold,
		"high_value_ok":        thresholdOK,
		"loaded_at":            h.Store.LoadedAt().Format(time.RFC3339),
		"rows":                 df.Nrow(),
	})
}

// GetExport streams the filtered view as a downloadable file. format=csv
// (default) or format=xlsx. An empty selection falls back to the full
// dataset, flagged via the X-Filter-Warning header since the file body has
// no envelope to carry it.
func (h *Handler) GetExport(c *gin.Context) {
	df, warning, err := h.filteredFrame(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	if warning != "" {
		c.Header("X-Filter-Warning", warning)
	}

	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="filtered_ride_bookings.csv"`)
		if err := df.WriteCSV(c.Writer); err != nil {
			h.Logger.Error("export csv failed: " + err.Error())
		}
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="filtered_ride_bookings.xlsx"`)
		if err := utils.WriteExcel(df, c.Writer); err != nil {
			h.Logger.Error("export xlsx failed: " + err.Error())
		}
	default:
		abortBadRequest(c, fmt.Errorf("unsupported export format %q", format))
	}
}

// PostReload re-reads the dataset file on demand.
func (h *Handler) PostReload(c *gin.Context) {
	if err := h.Store.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.Logger.Info("dataset reloaded via API")
	c.JSON(http.StatusOK, gin.H{"rows": h.Store.Frame().Nrow(), "loaded_at": h.Store.LoadedAt().Format(time.RFC3339)})
}

func distinctValues(df dataframe.DataFrame, colName string) []string {
	if !utils.HasColumn(df, colName) {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, v := range df.Col(colName).Records() {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
