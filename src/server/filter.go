package server

import (
	"fmt"
	"strconv"

	"RideLens/src/config"
	"RideLens/src/processor"
	"RideLens/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Filter is the sidebar selection: vehicle type / status / payment method
// sets, an inclusive date range and an inclusive hour-of-day range. The
// zero value selects everything.
type Filter struct {
	VehicleTypes   []string
	Statuses       []string
	PaymentMethods []string
	DateFrom       string // "2006-01-02", inclusive; empty = unbounded
	DateTo         string
	HourFrom       int
	HourTo         int
}

// FilterFromQuery parses the filter query contract:
// vehicle=&status=&payment= (repeatable), from=&to= (dates),
// hour_from=&hour_to=.
func FilterFromQuery(c *gin.Context) (Filter, error) {
	f := Filter{
		VehicleTypes:   c.QueryArray("vehicle"),
		Statuses:       c.QueryArray("status"),
		PaymentMethods: c.QueryArray("payment"),
		DateFrom:       c.Query("from"),
		DateTo:         c.Query("to"),
		HourFrom:       0,
		HourTo:         23,
	}

	var err error
	if v := c.Query("hour_from"); v != "" {
		if f.HourFrom, err = strconv.Atoi(v); err != nil {
			return Filter{}, fmt.Errorf("invalid hour_from: %w", err)
		}
	}
	if v := c.Query("hour_to"); v != "" {
		if f.HourTo, err = strconv.Atoi(v); err != nil {
			return Filter{}, fmt.Errorf("invalid hour_to: %w", err)
		}
	}
	if f.HourFrom < 0 || f.HourTo > 23 || f.HourFrom > f.HourTo {
		return Filter{}, fmt.Errorf("hour range must satisfy 0 <= hour_from <= hour_to <= 23")
	}

	return f, nil
}

// Apply produces the filtered view: a non-destructive row selection over the
// base frame. The base frame is never modified. Rows with a null timestamp
// survive only as long as no date or hour constraint is active.
func (f Filter) Apply(df dataframe.DataFrame, cols *config.Columns) dataframe.DataFrame {
	out := df

	if len(f.VehicleTypes) > 0 {
		out = filterIn(out, cols.Get("vehicle_type"), f.VehicleTypes)
	}
	if len(f.Statuses) > 0 {
		out = filterIn(out, cols.Get("status"), f.Statuses)
	}
	if len(f.PaymentMethods) > 0 {
		out = filterIn(out, cols.Get("payment_method"), f.PaymentMethods)
	}

	if f.DateFrom != "" || f.DateTo != "" {
		from, to := f.DateFrom, f.DateTo
		out = out.Filter(dataframe.F{
			Colname:    processor.ColTimestamp,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				ts := el.String()
				if len(ts) < 10 {
					return false // null timestamp: no date to match
				}
				date := ts[:10]
				if from != "" && date < from {
					return false
				}
				if to != "" && date > to {
					return false
				}
				return true
			},
		})
	}

	if f.HourFrom > 0 || f.HourTo < 23 {
		lo, hi := f.HourFrom, f.HourTo
		out = out.Filter(dataframe.F{
			Colname:    processor.ColHour,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				h := int(el.Float())
				return h >= lo && h <= hi
			},
		})
	}

	return out
}

func filterIn(df dataframe.DataFrame, colName string, allowed []string) dataframe.DataFrame {
	if !utils.HasColumn(df, colName) {
		return df
	}
	return df.Filter(dataframe.F{
		Colname:    colName,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return utils.Contains(allowed, el.String())
		},
	})
}
