package datapush

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"RideLens/src/processor"
)

const (
	RetryTimes    = 5
	RetryInterval = 2 * time.Second
	pushTimeout   = 10 * time.Second
)

// WebhookPusher posts the daily KPI digest as a plain text message to a
// configured webhook (chat bot, alerting bridge, ...).
type WebhookPusher struct {
	webhookURL string
	client     *http.Client
	printer    *message.Printer
}

type pushPayload struct {
	MsgType string      `json:"msgtype"`
	Text    pushContent `json:"text"`
}

type pushContent struct {
	Content string `json:"content"`
}

func NewWebhookPusher(webhookURL string) *WebhookPusher {
	return &WebhookPusher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: pushTimeout},
		printer:    message.NewPrinter(language.English),
	}
}

// PushDailySummary formats and sends the KPI digest, retrying on failure.
func (p *WebhookPusher) PushDailySummary(m processor.RideMetrics, when time.Time) error {
	content := p.FormatSummary(m, when)
	return retry(func() error {
		return p.send(content)
	}, RetryTimes, RetryInterval)
}

// FormatSummary renders the digest text. The printer inserts thousands
// separators so large ride counts stay readable in chat.
func (p *WebhookPusher) FormatSummary(m processor.RideMetrics, when time.Time) string {
	return p.printer.Sprintf(
		"Ride bookings digest for %s\nTotal rides: %d\nSuccess rate: %.2f%%\nCustomer cancellations: %.2f%%\nDriver cancellations: %.2f%%\nAvg revenue: %.2f\nAvg driver rating: %.2f",
		when.Format("2006-01-02"),
		m.TotalRides,
		m.SuccessRate,
		m.CustomerCancellationRate,
		m.DriverCancellationRate,
		m.AvgRevenue,
		m.AvgDriverRating,
	)
}

func (p *WebhookPusher) send(content string) error {
	payload := pushPayload{
		MsgType: "text",
		Text:    pushContent{Content: content},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected digest: %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	return nil
}

func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %v", times, err)
}
