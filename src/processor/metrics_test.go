package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
)

func derivedSample(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df, err := AddDerivedFeatures(bookingsFrame(records), testColumns())
	assert.NoError(t, err)
	return df
}

func TestCalculateRideMetricsEmpty(t *testing.T) {
	df := derivedSample(t, sampleRecords())
	empty := df.Filter(dataframe.F{
		Colname:    "Booking ID",
		Comparator: series.Eq,
		Comparando: "no-such-id",
	})
	assert.Equal(t, 0, empty.Nrow())

	m := CalculateRideMetrics(empty, testColumns())
	assert.Equal(t, RideMetrics{}, m)
}

func TestCalculateRideMetrics(t *testing.T) {
	df := derivedSample(t, sampleRecords())
	m := CalculateRideMetrics(df, testColumns())

	assert.Equal(t, 3, m.TotalRides)
	assert.InDelta(t, 66.67, m.SuccessRate, 0.01)
	assert.InDelta(t, 33.33, m.CustomerCancellationRate, 0.01)
	assert.Equal(t, 0.0, m.DriverCancellationRate)
	assert.InDelta(t, 133.33, m.AvgRevenue, 0.01, "avg revenue spans all rides, cancellations contribute zero")
	assert.InDelta(t, 4.25, m.AvgDriverRating, 0.001, "missing ratings are skipped, not averaged as zero")
}

func TestRateSumCoversAllRides(t *testing.T) {
	records := [][]string{
		{"Date", "Time", "Booking ID", "Booking Status", "Vehicle Type", "Payment Method", "Booking Value", "Ride Distance", "Driver Ratings", "Avg CTAT", "Reason for cancelling by Customer", "Driver Cancellation Reason"},
		{"2024-03-04", "08:00:00", "B1", "Completed", "Auto", "UPI", "100", "5", "4", "8", "", ""},
		{"2024-03-04", "09:00:00", "B2", "Cancelled by Customer", "Auto", "UPI", "0", "0", "NaN", "8", "Changed plans", ""},
		{"2024-03-04", "10:00:00", "B3", "Cancelled by Driver", "Auto", "UPI", "0", "0", "NaN", "8", "", "Car issue"},
		{"2024-03-04", "11:00:00", "B4", "Incomplete", "Auto", "UPI", "50", "2", "NaN", "8", "", ""},
	}
	m := CalculateRideMetrics(derivedSample(t, records), testColumns())

	residual := 100 - m.SuccessRate - m.CustomerCancellationRate - m.DriverCancellationRate
	assert.InDelta(t, 25.0, residual, 0.001, "incomplete rides land in the residual share")
}

func TestVolumeByHourAlwaysFullDay(t *testing.T) {
	df := derivedSample(t, sampleRecords())
	points, err := PrepareVolumeData(df, GranularityHour)
	assert.NoError(t, err)

	assert.Len(t, points, 24)
	assert.Equal(t, "00:00", points[0].Label)
	assert.Equal(t, "23:00", points[23].Label)
	assert.Equal(t, 1, points[8].Count)
	assert.Equal(t, 1, points[18].Count)
	assert.Equal(t, 0, points[3].Count)
}

func TestVolumeByDayOfWeekOrder(t *testing.T) {
	df := derivedSample(t, sampleRecords())
	points, err := PrepareVolumeData(df, GranularityDayOfWeek)
	assert.NoError(t, err)

	labels := make([]string, len(points))
	for i, p := range points {
		labels[i] = p.Label
	}
	assert.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}, labels)
	assert.Equal(t, 1, points[0].Count)
	assert.Equal(t, 0, points[6].Count)
}

func TestVolumeByMonthChronological(t *testing.T) {
	records := [][]string{
		{"Date", "Time", "Booking ID", "Booking Status", "Vehicle Type", "Payment Method", "Booking Value", "Ride Distance", "Driver Ratings", "Avg CTAT", "Reason for cancelling by Customer", "Driver Cancellation Reason"},
		{"2024-11-01", "08:00:00", "B1", "Completed", "Auto", "UPI", "100", "5", "4", "8", "", ""},
		{"2024-02-01", "08:00:00", "B2", "Completed", "Auto", "UPI", "100", "5", "4", "8", "", ""},
		{"2024-11-02", "08:00:00", "B3", "Completed", "Auto", "UPI", "100", "5", "4", "8", "", ""},
	}
	points, err := PrepareVolumeData(derivedSample(t, records), GranularityMonth)
	assert.NoError(t, err)

	assert.Equal(t, []VolumePoint{
		{Label: "2024-02", Count: 1},
		{Label: "2024-11", Count: 2},
	}, points)
}

func TestVolumeUnknownGranularity(t *testing.T) {
	_, err := PrepareVolumeData(derivedSample(t, sampleRecords()), Granularity("Quarter"))
	assert.Error(t, err)
}

func TestVehicleTypeMetrics(t *testing.T) {
	records := [][]string{
		{"Date", "Time", "Booking ID", "Booking Status", "Vehicle Type", "Payment Method", "Booking Value", "Ride Distance", "Driver Ratings", "Avg CTAT", "Reason for cancelling by Customer", "Driver Cancellation Reason"},
		{"2024-03-04", "08:00:00", "B1", "Completed", "Auto", "UPI", "100", "4.0", "4.0", "8", "", ""},
		{"2024-03-04", "09:00:00", "B2", "Completed", "Auto", "UPI", "200", "6.0", "5.0", "8", "", ""},
		{"2024-03-04", "10:00:00", "B3", "Cancelled by Customer", "Auto", "", "0", "0", "NaN", "8", "Changed plans", ""},
		{"2024-03-04", "11:00:00", "B4", "Incomplete", "Sedan", "Cash", "80", "3.0", "NaN", "8", "", ""},
	}
	summaries := VehicleTypeMetrics(derivedSample(t, records), testColumns())

	assert.Len(t, summaries, 2)

	auto := summaries[0]
	assert.Equal(t, "Auto", auto.VehicleType)
	assert.Equal(t, 3, auto.TotalBookings)
	assert.Equal(t, 66.7, auto.SuccessRate)
	assert.Equal(t, 33.3, auto.CancellationRate)
	assert.Equal(t, 0.0, auto.IncompleteRate)
	assert.Equal(t, 100.0, auto.AvgBookingValue)
	assert.InDelta(t, 3.33, auto.AvgRideDistance, 0.001)
	assert.Equal(t, 4.5, auto.AvgDriverRating)

	sedan := summaries[1]
	assert.Equal(t, "Sedan", sedan.VehicleType)
	assert.Equal(t, 1, sedan.TotalBookings)
	assert.Equal(t, 0.0, sedan.SuccessRate)
	assert.Equal(t, 100.0, sedan.IncompleteRate)
	assert.Equal(t, 0.0, sedan.AvgDriverRating, "no rated rides averages to zero")
}

func TestVehicleTypeMetricsEmpty(t *testing.T) {
	df := derivedSample(t, sampleRecords())
	empty := df.Filter(dataframe.F{
		Colname:    "Booking ID",
		Comparator: series.Eq,
		Comparando: "no-such-id",
	})
	assert.Equal(t, []VehicleTypeSummary{}, VehicleTypeMetrics(empty, testColumns()))
}
