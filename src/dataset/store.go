package dataset

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"RideLens/src/config"
	"RideLens/src/datasource/file"
	"RideLens/src/processor"

	"github.com/go-gota/gota/dataframe"
)

// Store holds the derived base dataset as process-wide read-only state. It is
// loaded once at startup; every user interaction works on filtered views of
// the same frame and never mutates it. Reload is the single invalidation
// point, used when the source file changes on disk.
type Store struct {
	mu          sync.RWMutex
	df          dataframe.DataFrame
	cfg         *config.Config
	cols        *config.Columns
	threshold   float64
	thresholdOK bool
	loadedAt    time.Time
}

var (
	once     sync.Once
	instance *Store
	initErr  error
)

// Load reads and derives the base dataset exactly once per process. A failed
// first load is sticky: the process is expected to abort on it.
func Load(cfg *config.Config, cols *config.Columns) (*Store, error) {
	once.Do(func() {
		s := &Store{cfg: cfg, cols: cols}
		if err := s.Reload(); err != nil {
			initErr = err
			return
		}
		instance = s
	})
	return instance, initErr
}

// Frame returns the shared derived frame. Callers must treat it as read-only:
// filtering with gota produces new frames and never touches this one.
func (s *Store) Frame() dataframe.DataFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.df
}

// HighValueThreshold reports the completed-ride booking value percentile the
// High_Value_Trip flags were computed against, and whether it was attainable.
func (s *Store) HighValueThreshold() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, s.thresholdOK
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Store) Path() string {
	return filepath.Join(s.cfg.Data.Dir, s.cfg.Data.File)
}

// Reload re-reads the source file and swaps in a freshly derived frame. The
// high-value threshold is recomputed over the new base population; it stays
// fixed across filtered views until the next reload.
func (s *Store) Reload() error {
	raw, err := file.ReadDataset(s.Path(), s.cfg.Data.Sheet, NumericColumns(s.cols))
	if err != nil {
		return fmt.Errorf("failed to read dataset %s: %w", s.Path(), err)
	}

	derived, err := processor.AddDerivedFeatures(raw, s.cols)
	if err != nil {
		return err
	}

	threshold, ok := processor.HighValueThreshold(
		derived.Col(s.cols.Get("status")).Records(),
		derived.Col(s.cols.Get("booking_value")).Float(),
	)

	s.mu.Lock()
	s.df = derived
	s.threshold = threshold
	s.thresholdOK = ok
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return nil
}

// NumericColumns lists the physical columns that load as floats.
func NumericColumns(cols *config.Columns) file.NumericColumns {
	return file.NumericColumns{
		cols.Get("booking_value"),
		cols.Get("ride_distance"),
		cols.Get("driver_rating"),
		cols.Get("duration"),
	}
}
