package processor

import (
	"math"

	"RideLens/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// floatColumn extracts a column as floats, yielding an all-NA slice when the
// column is absent. Optional dataset columns (distance, ratings) may be
// missing without breaking the aggregates built on them.
func floatColumn(df dataframe.DataFrame, name string) []float64 {
	if utils.HasColumn(df, name) {
		return df.Col(name).Float()
	}
	vals := make([]float64, df.Nrow())
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}

// stringColumn extracts a column as strings, yielding empty strings when the
// column is absent.
func stringColumn(df dataframe.DataFrame, name string) []string {
	if utils.HasColumn(df, name) {
		return df.Col(name).Records()
	}
	return make([]string, df.Nrow())
}
