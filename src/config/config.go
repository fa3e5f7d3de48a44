package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config defines the application configuration.
type Config struct {
	Server struct {
		Addr string `json:"addr"` // HTTP listen address, e.g. ":8080"
	} `json:"server"`

	Data struct {
		Dir   string `json:"dir"`   // directory holding the bookings dataset
		File  string `json:"file"`  // dataset file name (.csv or .xlsx)
		Sheet string `json:"sheet"` // sheet name for xlsx datasets
		Watch bool   `json:"watch"` // reload the dataset when the file changes
	} `json:"data"`

	Email struct {
		Enabled       bool     `json:"enabled"`
		Server        string   `json:"server"`         // IMAP server address
		Username      string   `json:"username"`       // mailbox account
		Password      string   `json:"password"`       // password / app token
		TargetSubject string   `json:"target_subject"` // subject keyword of dataset mails
		CheckInterval Duration `json:"check_interval"` // mailbox poll interval
	} `json:"email"`

	Push struct {
		Enabled    bool     `json:"enabled"`
		WebhookURL string   `json:"webhook_url"` // digest receiver
		Interval   Duration `json:"interval"`    // digest push interval
	} `json:"push"`

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"` // size expression, e.g. "10 * 1024 * 1024"
}

// Columns maps the logical column names the processors work with to the
// physical header names of the dataset file, so a renamed export does not
// require a rebuild.
type Columns struct {
	Dataset map[string]string `json:"dataset"`
}

var (
	once            sync.Once
	instance        *Config
	columnsInstance *Columns
	mu              sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, columnsFile string) (*Config, *Columns, error) {
	var err error
	once.Do(func() {
		instance, columnsInstance, err = loadConfigs(jsonFolder, jsonFile, columnsFile)
	})
	return instance, columnsInstance, err
}

func loadConfigs(jsonFolder, jsonFile, columnsFile string) (*Config, *Columns, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	columnsPath := filepath.Join(jsonFolder, columnsFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	columnsData, err := readFile(columnsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns file: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	colChan := make(chan *Columns, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseColumns(columnsData, colChan, errChan)

	cfg, cols, err := waitForResults(cfgChan, colChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	return cfg, cols, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("failed to parse Config: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseColumns(data []byte, resultChan chan<- *Columns, errChan chan<- error) {
	var cols Columns
	if err := json.Unmarshal(data, &cols); err != nil {
		errChan <- fmt.Errorf("failed to parse Columns: %w", err)
		return
	}
	resultChan <- &cols
}

func waitForResults(
	cfgChan <-chan *Config,
	colChan <-chan *Columns,
	errChan <-chan error,
) (*Config, *Columns, error) {
	var (
		cfg    *Config
		cols   *Columns
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-colChan:
			cols = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || cols == nil {
		return nil, nil, fmt.Errorf("some configuration was not loaded")
	}

	return cfg, cols, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "configuration loading hit multiple errors:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration is a custom wrapper around time.Duration supporting JSON
// serialization of strings like "30m".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Get returns the physical column name for a logical key. A missing mapping
// falls back to the key itself so a partial columns file stays usable.
func (c *Columns) Get(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	if v, ok := c.Dataset[key]; ok {
		return v
	}
	return key
}

func (c *Columns) Set(key, value string) {
	mu.Lock()
	defer mu.Unlock()
	if c.Dataset == nil {
		c.Dataset = make(map[string]string)
	}
	c.Dataset[key] = value
}

// DefaultColumns returns the column mapping of the reference dataset export.
func DefaultColumns() *Columns {
	return &Columns{Dataset: map[string]string{
		"date":                   "Date",
		"time":                   "Time",
		"booking_id":             "Booking ID",
		"status":                 "Booking Status",
		"vehicle_type":           "Vehicle Type",
		"payment_method":         "Payment Method",
		"booking_value":          "Booking Value",
		"ride_distance":          "Ride Distance",
		"driver_rating":          "Driver Ratings",
		"duration":               "Avg CTAT",
		"cancel_reason_customer": "Reason for cancelling by Customer",
		"cancel_reason_driver":   "Driver Cancellation Reason",
	}}
}
