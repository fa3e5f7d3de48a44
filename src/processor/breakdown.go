package processor

import (
	"fmt"
	"math"
	"sort"

	"RideLens/src/config"
	"RideLens/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// StatusCount is one slice of the booking status pie.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StatusBreakdown counts bookings per status, most frequent first.
func StatusBreakdown(df dataframe.DataFrame, cols *config.Columns) []StatusCount {
	counts := make(map[string]int)
	if df.Nrow() > 0 {
		for _, s := range df.Col(cols.Get("status")).Records() {
			counts[s]++
		}
	}
	out := make([]StatusCount, 0, len(counts))
	for s, c := range counts {
		out = append(out, StatusCount{Status: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// CancellationSide selects whose cancellation reasons to count.
type CancellationSide string

const (
	CustomerSide CancellationSide = "customer"
	DriverSide   CancellationSide = "driver"
)

// ReasonCount is one bar of the cancellation reason chart.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// CancellationReasonCounts counts the free-text cancellation reasons on the
// rows cancelled by the given side, most frequent first. Blank reasons are
// skipped.
func CancellationReasonCounts(df dataframe.DataFrame, cols *config.Columns, side CancellationSide) ([]ReasonCount, error) {
	var status, reasonCol string
	switch side {
	case CustomerSide:
		status = StatusCancelledByCustomer
		reasonCol = cols.Get("cancel_reason_customer")
	case DriverSide:
		status = StatusCancelledByDriver
		reasonCol = cols.Get("cancel_reason_driver")
	default:
		return nil, fmt.Errorf("unknown cancellation side %q", side)
	}

	counts := make(map[string]int)
	if df.Nrow() > 0 && utils.HasColumn(df, reasonCol) {
		cancelled := df.Filter(
			dataframe.F{Colname: cols.Get("status"), Comparator: series.Eq, Comparando: status},
		)
		if cancelled.Nrow() > 0 {
			for _, r := range cancelled.Col(reasonCol).Records() {
				if !isBlank(r) {
					counts[r]++
				}
			}
		}
	}

	out := make([]ReasonCount, 0, len(counts))
	for r, c := range counts {
		out = append(out, ReasonCount{Reason: r, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out, nil
}

// VehicleRevenue is one bar of the revenue-by-vehicle-type chart.
type VehicleRevenue struct {
	VehicleType  string  `json:"vehicle_type"`
	TotalRevenue float64 `json:"total_revenue"`
}

// RevenueByVehicleType sums completed-ride revenue per vehicle type, sorted
// by vehicle type name.
func RevenueByVehicleType(df dataframe.DataFrame, cols *config.Columns) []VehicleRevenue {
	sums := make(map[string]float64)
	if df.Nrow() > 0 {
		vehicles := stringColumn(df, cols.Get("vehicle_type"))
		revenues := df.Col(ColRevenue).Float()
		for i, v := range vehicles {
			if !math.IsNaN(revenues[i]) {
				sums[v] += revenues[i]
			}
		}
	}

	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]VehicleRevenue, 0, len(names))
	for _, name := range names {
		out = append(out, VehicleRevenue{VehicleType: name, TotalRevenue: utils.Round2(sums[name])})
	}
	return out
}

// BoxStats summarizes the revenue distribution for the fare box plot.
type BoxStats struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// RevenueDistribution computes the five-number summary of the Revenue column.
// An empty view yields the zero value.
func RevenueDistribution(df dataframe.DataFrame) BoxStats {
	if df.Nrow() == 0 {
		return BoxStats{}
	}

	var revenues []float64
	for _, v := range df.Col(ColRevenue).Float() {
		if !math.IsNaN(v) {
			revenues = append(revenues, v)
		}
	}
	if len(revenues) == 0 {
		return BoxStats{}
	}
	sort.Float64s(revenues)

	return BoxStats{
		Min:    revenues[0],
		Q1:     stat.Quantile(0.25, stat.LinInterp, revenues, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, revenues, nil),
		Q3:     stat.Quantile(0.75, stat.LinInterp, revenues, nil),
		Max:    revenues[len(revenues)-1],
		Count:  len(revenues),
	}
}

// TrendPoint is one month of the KPI sparklines.
type TrendPoint struct {
	Month                    string  `json:"month"`
	TotalRides               int     `json:"total_rides"`
	SuccessRate              float64 `json:"success_rate"`
	CustomerCancellationRate float64 `json:"customer_cancellation_rate"`
	AvgRevenue               float64 `json:"avg_revenue"`
	AvgDriverRating          float64 `json:"avg_driver_rating"`
}

type trendAccumulator struct {
	total         int
	completed     int
	custCancelled int
	revenueSum    float64
	revenueCount  int
	ratingSum     float64
	ratingCount   int
}

// MonthlyTrends aggregates the KPI set per calendar month, in chronological
// order, as the source for the KPI card sparklines. Rows with a null
// timestamp carry no month and are excluded.
func MonthlyTrends(df dataframe.DataFrame, cols *config.Columns) []TrendPoint {
	if df.Nrow() == 0 {
		return []TrendPoint{}
	}

	periods := df.Col(ColMonthPeriod).Records()
	statuses := df.Col(cols.Get("status")).Records()
	revenues := df.Col(ColRevenue).Float()
	ratings := floatColumn(df, cols.Get("driver_rating"))

	groups := make(map[string]*trendAccumulator)
	for i, p := range periods {
		if p == "" {
			continue
		}
		acc, ok := groups[p]
		if !ok {
			acc = &trendAccumulator{}
			groups[p] = acc
		}
		acc.total++
		switch statuses[i] {
		case StatusCompleted:
			acc.completed++
		case StatusCancelledByCustomer:
			acc.custCancelled++
		}
		if !math.IsNaN(revenues[i]) {
			acc.revenueSum += revenues[i]
			acc.revenueCount++
		}
		if !math.IsNaN(ratings[i]) {
			acc.ratingSum += ratings[i]
			acc.ratingCount++
		}
	}

	months := make([]string, 0, len(groups))
	for p := range groups {
		months = append(months, p)
	}
	sort.Strings(months)

	out := make([]TrendPoint, 0, len(months))
	for _, p := range months {
		acc := groups[p]
		total := float64(acc.total)
		out = append(out, TrendPoint{
			Month:                    p,
			TotalRides:               acc.total,
			SuccessRate:              float64(acc.completed) / total * 100,
			CustomerCancellationRate: float64(acc.custCancelled) / total * 100,
			AvgRevenue:               safeMean(acc.revenueSum, acc.revenueCount),
			AvgDriverRating:          safeMean(acc.ratingSum, acc.ratingCount),
		})
	}
	return out
}
