package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of a log entry.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// Logger is a leveled file logger. Entries are also fanned out to subscriber
// channels, which back the dashboard's live /logs stream.
type Logger struct {
	filename    string
	file        *os.File
	mu          sync.Mutex
	subscribers []chan string
}

// NewLogger opens (or creates) the log file in append mode.
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filename: filename,
		file:     file,
	}, nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Log writes one entry and notifies subscribers. Subscribers with a full
// channel are skipped rather than blocking the writer.
func (l *Logger) Log(level LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fmt.Sprintf("[%s] %s: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		level.String(),
		message)

	l.file.WriteString(entry)

	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// CheckRotate rotates the log file once it exceeds the configured size
// expression (e.g. "10 * 1024 * 1024").
func (l *Logger) CheckRotate(maxSize string) error {
	maxBytes, err := eval(maxSize)
	if err != nil {
		return err
	}

	l.mu.Lock()
	info, err := l.file.Stat()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if info.Size() > maxBytes {
		return l.rotate()
	}
	return nil
}

func (l *Logger) rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		rotated := fmt.Sprintf("%s.%s", l.filename, time.Now().Format("20060102150405"))
		os.Rename(l.filename, rotated)
	}

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

// Subscribe returns a buffered channel receiving every future log entry.
// Callers must Unsubscribe when done or the channel is retained for the
// process lifetime.
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (l *Logger) Unsubscribe(ch <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, sub := range l.subscribers {
		if (<-chan string)(sub) == ch {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// eval computes a "a * b * c" style size expression from the config.
func eval(expr string) (int64, error) {
	parts := strings.Split(expr, " * ")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid size expression %q: %w", expr, err)
		}
		result *= int64(num)
	}
	return result, nil
}

func (l *Logger) Debug(msg string)   { l.Log(DEBUG, msg) }
func (l *Logger) Info(msg string)    { l.Log(INFO, msg) }
func (l *Logger) Warning(msg string) { l.Log(WARNING, msg) }
func (l *Logger) Error(msg string)   { l.Log(ERROR, msg) }
func (l *Logger) Fatal(msg string)   { l.Log(FATAL, msg) }
