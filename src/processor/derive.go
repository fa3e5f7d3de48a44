package processor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"RideLens/src/config"
	"RideLens/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// Derived column names. Kept identical to the reference dataset export so a
// downloaded filtered view lines up with the original dashboard's CSV.
const (
	ColTimestamp        = "Timestamp"
	ColHour             = "Hour"
	ColDayOfWeek        = "Day_of_Week"
	ColMonth            = "Month"
	ColMonthPeriod      = "Month_Period"
	ColRevenue          = "Revenue"
	ColHighValueTrip    = "High_Value_Trip"
	ColDurationCategory = "Trip_Duration_Category"
	ColIsPeakHour       = "Is_Peak_Hour"
)

// Booking statuses the metrics distinguish. The status column is an open set:
// anything else passes through untouched and lands in the residual bucket.
const (
	StatusCompleted           = "Completed"
	StatusCancelledByCustomer = "Cancelled by Customer"
	StatusCancelledByDriver   = "Cancelled by Driver"
	StatusIncomplete          = "Incomplete"
)

const (
	// NoPayment replaces a missing payment method.
	NoPayment = "No Payment"

	// TimestampLayout is the canonical textual timestamp format.
	TimestampLayout = "2006-01-02 15:04:05"

	// HourNone marks rows whose timestamp could not be parsed. Such rows are
	// kept but excluded from every time-bucketed aggregate.
	HourNone = -1

	// Short/Medium/Long breakpoints for the trip duration bucket, in minutes.
	durationShortMax  = 10.0
	durationMediumMax = 30.0

	// highValueQuantile is the completed-ride booking value percentile above
	// which a trip is flagged high value.
	highValueQuantile = 0.75
)

var peakHours = map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}

// DataError reports required dataset columns missing at load time. It is
// fatal: startup must abort on it.
type DataError struct {
	Missing []string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("dataset is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// requiredColumns are the logical columns the deriver cannot work without.
var requiredColumns = []string{"date", "time", "status", "booking_value", "duration"}

// AddDerivedFeatures augments the raw bookings frame with the analytic
// columns: Timestamp, Hour, Day_of_Week, Month, Month_Period, Revenue,
// High_Value_Trip, Trip_Duration_Category and Is_Peak_Hour. The input frame
// is never mutated; a missing required column yields a *DataError.
//
// Rows whose Date+Time text does not parse keep an empty Timestamp and
// Hour = HourNone rather than failing the whole load.
func AddDerivedFeatures(df dataframe.DataFrame, cols *config.Columns) (dataframe.DataFrame, error) {
	if err := df.Error(); err != nil {
		return df, fmt.Errorf("invalid input frame: %w", err)
	}

	var missing []string
	for _, key := range requiredColumns {
		if !utils.HasColumn(df, cols.Get(key)) {
			missing = append(missing, cols.Get(key))
		}
	}
	if len(missing) > 0 {
		return df, &DataError{Missing: missing}
	}

	out := df.Copy()
	n := out.Nrow()

	// Normalize missing payment methods to an explicit category.
	if payCol := cols.Get("payment_method"); utils.HasColumn(out, payCol) {
		payments := out.Col(payCol).Records()
		for i, p := range payments {
			if isBlank(p) {
				payments[i] = NoPayment
			}
		}
		out = out.Mutate(series.New(payments, series.String, payCol))
	}

	dates := out.Col(cols.Get("date")).Records()
	times := out.Col(cols.Get("time")).Records()
	statuses := out.Col(cols.Get("status")).Records()
	values := out.Col(cols.Get("booking_value")).Float()
	durations := out.Col(cols.Get("duration")).Float()

	threshold, attainable := HighValueThreshold(statuses, values)

	timestamps := make([]string, n)
	hours := make([]int, n)
	dayNames := make([]string, n)
	monthNames := make([]string, n)
	periods := make([]string, n)
	revenues := make([]float64, n)
	highValue := make([]int, n)
	durCats := make([]string, n)
	peak := make([]int, n)

	for i := 0; i < n; i++ {
		ts, err := time.Parse(TimestampLayout, dates[i]+" "+times[i])
		if err != nil {
			// Unparsable timestamp: keep the row with null sentinels.
			timestamps[i] = ""
			hours[i] = HourNone
		} else {
			timestamps[i] = ts.Format(TimestampLayout)
			hours[i] = ts.Hour()
			dayNames[i] = ts.Weekday().String()
			monthNames[i] = ts.Month().String()
			periods[i] = ts.Format("2006-01")
		}

		if statuses[i] == StatusCompleted && !math.IsNaN(values[i]) {
			revenues[i] = values[i]
		}

		if attainable && !math.IsNaN(values[i]) && values[i] >= threshold {
			highValue[i] = 1
		}

		durCats[i] = durationCategory(durations[i])

		if peakHours[hours[i]] {
			peak[i] = 1
		}
	}

	out = out.
		Mutate(series.New(timestamps, series.String, ColTimestamp)).
		Mutate(series.New(hours, series.Int, ColHour)).
		Mutate(series.New(dayNames, series.String, ColDayOfWeek)).
		Mutate(series.New(monthNames, series.String, ColMonth)).
		Mutate(series.New(periods, series.String, ColMonthPeriod)).
		Mutate(series.New(revenues, series.Float, ColRevenue)).
		Mutate(series.New(highValue, series.Int, ColHighValueTrip)).
		Mutate(series.New(durCats, series.String, ColDurationCategory)).
		Mutate(series.New(peak, series.Int, ColIsPeakHour))

	if err := out.Error(); err != nil {
		return df, fmt.Errorf("failed to derive features: %w", err)
	}

	return out, nil
}

// HighValueThreshold computes the booking value percentile over Completed
// rows only. It is a one-time reduction over the unfiltered base data: the
// flag attached by AddDerivedFeatures never changes when the view is
// filtered. The second return is false when no Completed row carries a value,
// in which case the threshold is unattainable and no trip is flagged.
func HighValueThreshold(statuses []string, values []float64) (float64, bool) {
	var completed []float64
	for i, s := range statuses {
		if s == StatusCompleted && !math.IsNaN(values[i]) {
			completed = append(completed, values[i])
		}
	}
	if len(completed) == 0 {
		return 0, false
	}
	sort.Float64s(completed)
	return stat.Quantile(highValueQuantile, stat.LinInterp, completed, nil), true
}

func durationCategory(minutes float64) string {
	switch {
	case math.IsNaN(minutes):
		return ""
	case minutes <= durationShortMax:
		return "Short"
	case minutes <= durationMediumMax:
		return "Medium"
	default:
		return "Long"
	}
}

func isBlank(s string) bool {
	return s == "" || s == "NA" || s == "NaN" || s == "null"
}
