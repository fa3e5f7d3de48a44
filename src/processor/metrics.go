package processor

import (
	"fmt"
	"math"
	"sort"

	"RideLens/src/config"
	"RideLens/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// RideMetrics is the scalar KPI summary for a (possibly filtered) view.
// Rates are percentages in [0,100]. An empty view yields the zero value,
// never NaN and never an error, so rendering code needs no special cases.
type RideMetrics struct {
	TotalRides               int     `json:"total_rides"`
	SuccessRate              float64 `json:"success_rate"`
	CustomerCancellationRate float64 `json:"customer_cancellation_rate"`
	DriverCancellationRate   float64 `json:"driver_cancellation_rate"`
	AvgRevenue               float64 `json:"avg_revenue"`
	AvgDriverRating          float64 `json:"avg_driver_rating"`
}

// CalculateRideMetrics computes the KPI summary over the given view.
func CalculateRideMetrics(df dataframe.DataFrame, cols *config.Columns) RideMetrics {
	n := df.Nrow()
	if n == 0 {
		return RideMetrics{}
	}

	var completed, custCancelled, driverCancelled int
	for _, s := range df.Col(cols.Get("status")).Records() {
		switch s {
		case StatusCompleted:
			completed++
		case StatusCancelledByCustomer:
			custCancelled++
		case StatusCancelledByDriver:
			driverCancelled++
		}
	}

	return RideMetrics{
		TotalRides:               n,
		SuccessRate:              float64(completed) / float64(n) * 100,
		CustomerCancellationRate: float64(custCancelled) / float64(n) * 100,
		DriverCancellationRate:   float64(driverCancelled) / float64(n) * 100,
		AvgRevenue:               meanSkipNA(df.Col(ColRevenue).Float()),
		AvgDriverRating:          meanDriverRating(df, cols),
	}
}

// Granularity selects the time unit for volume bucketing.
type Granularity string

const (
	GranularityHour      Granularity = "Hour"
	GranularityDayOfWeek Granularity = "Day of Week"
	GranularityMonth     Granularity = "Month"
)

// VolumePoint is one (unit label, ride count) bucket.
type VolumePoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var dayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// PrepareVolumeData groups the view by the selected time unit and returns
// ordered buckets. Hour buckets are always the full 00:00..23:00 range and
// Day of Week buckets always Monday..Sunday, zero-filled when absent, so the
// chart axis stays stable under filtering. Month buckets list only the
// periods present, in chronological order. Rows with a null timestamp are
// excluded from all three.
func PrepareVolumeData(df dataframe.DataFrame, granularity Granularity) ([]VolumePoint, error) {
	switch granularity {
	case GranularityHour:
		return volumeByHour(df), nil
	case GranularityDayOfWeek:
		return volumeByDayOfWeek(df), nil
	case GranularityMonth:
		return volumeByMonth(df), nil
	default:
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}
}

func volumeByHour(df dataframe.DataFrame) []VolumePoint {
	var counts [24]int
	if df.Nrow() > 0 {
		hours, err := df.Col(ColHour).Int()
		if err == nil {
			for _, h := range hours {
				if h >= 0 && h < 24 {
					counts[h]++
				}
			}
		}
	}

	points := make([]VolumePoint, 24)
	for h := 0; h < 24; h++ {
		points[h] = VolumePoint{Label: fmt.Sprintf("%02d:00", h), Count: counts[h]}
	}
	return points
}

func volumeByDayOfWeek(df dataframe.DataFrame) []VolumePoint {
	counts := make(map[string]int)
	if df.Nrow() > 0 {
		for _, d := range df.Col(ColDayOfWeek).Records() {
			if d != "" {
				counts[d]++
			}
		}
	}

	points := make([]VolumePoint, 0, len(dayOrder))
	for _, d := range dayOrder {
		points = append(points, VolumePoint{Label: d, Count: counts[d]})
	}
	return points
}

func volumeByMonth(df dataframe.DataFrame) []VolumePoint {
	counts := make(map[string]int)
	if df.Nrow() > 0 {
		for _, p := range df.Col(ColMonthPeriod).Records() {
			if p != "" {
				counts[p]++
			}
		}
	}

	periods := make([]string, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	// "2006-01" period labels sort lexically into calendar order.
	sort.Strings(periods)

	points := make([]VolumePoint, 0, len(periods))
	for _, p := range periods {
		points = append(points, VolumePoint{Label: p, Count: counts[p]})
	}
	return points
}

// VehicleTypeSummary is one row of the per-vehicle-type performance table.
// Rates carry one decimal, means two; the unrounded values are not retained.
type VehicleTypeSummary struct {
	VehicleType      string  `json:"vehicle_type"`
	TotalBookings    int     `json:"total_bookings"`
	SuccessRate      float64 `json:"success_rate"`
	IncompleteRate   float64 `json:"incomplete_rate"`
	CancellationRate float64 `json:"cancellation_rate"`
	AvgBookingValue  float64 `json:"avg_booking_value"`
	AvgRideDistance  float64 `json:"avg_ride_distance"`
	AvgDriverRating  float64 `json:"avg_driver_rating"`
}

type vehicleAccumulator struct {
	total         int
	completed     int
	incomplete    int
	cancelled     int
	valueSum      float64
	valueCount    int
	distanceSum   float64
	distanceCount int
	ratingSum     float64
	ratingCount   int
}

// VehicleTypeMetrics groups the view by vehicle type. Vehicle types never
// seen before are grouped like any other; the result is sorted by name.
// An empty view yields an empty table.
func VehicleTypeMetrics(df dataframe.DataFrame, cols *config.Columns) []VehicleTypeSummary {
	if df.Nrow() == 0 {
		return []VehicleTypeSummary{}
	}

	vehicles := stringColumn(df, cols.Get("vehicle_type"))
	statuses := df.Col(cols.Get("status")).Records()
	values := floatColumn(df, cols.Get("booking_value"))
	distances := floatColumn(df, cols.Get("ride_distance"))
	ratings := floatColumn(df, cols.Get("driver_rating"))

	groups := make(map[string]*vehicleAccumulator)
	for i, v := range vehicles {
		acc, ok := groups[v]
		if !ok {
			acc = &vehicleAccumulator{}
			groups[v] = acc
		}
		acc.total++
		switch statuses[i] {
		case StatusCompleted:
			acc.completed++
		case StatusIncomplete:
			acc.incomplete++
		case StatusCancelledByCustomer, StatusCancelledByDriver:
			acc.cancelled++
		}
		if !math.IsNaN(values[i]) {
			acc.valueSum += values[i]
			acc.valueCount++
		}
		if !math.IsNaN(distances[i]) {
			acc.distanceSum += distances[i]
			acc.distanceCount++
		}
		if !math.IsNaN(ratings[i]) {
			acc.ratingSum += ratings[i]
			acc.ratingCount++
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]VehicleTypeSummary, 0, len(names))
	for _, name := range names {
		acc := groups[name]
		total := float64(acc.total)
		summaries = append(summaries, VehicleTypeSummary{
			VehicleType:      name,
			TotalBookings:    acc.total,
			SuccessRate:      utils.Round1(float64(acc.completed) / total * 100),
			IncompleteRate:   utils.Round1(float64(acc.incomplete) / total * 100),
			CancellationRate: utils.Round1(float64(acc.cancelled) / total * 100),
			AvgBookingValue:  utils.Round2(safeMean(acc.valueSum, acc.valueCount)),
			AvgRideDistance:  utils.Round2(safeMean(acc.distanceSum, acc.distanceCount)),
			AvgDriverRating:  utils.Round2(safeMean(acc.ratingSum, acc.ratingCount)),
		})
	}
	return summaries
}

func meanDriverRating(df dataframe.DataFrame, cols *config.Columns) float64 {
	ratingCol := cols.Get("driver_rating")
	if !utils.HasColumn(df, ratingCol) {
		return 0
	}
	return meanSkipNA(df.Col(ratingCol).Float())
}

// meanSkipNA averages a float column skipping NA values. A column with no
// valid value averages to 0, not NaN.
func meanSkipNA(values []float64) float64 {
	var sum float64
	var count int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	return safeMean(sum, count)
}

func safeMean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
