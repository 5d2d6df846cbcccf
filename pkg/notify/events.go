package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

// Event is one entry on the external event stream.
type Event struct {
	Channel           string            `json:"channel"`
	Type              string            `json:"type"`
	RequestIdentifier string            `json:"request_identifier"`
	UserEmail         string            `json:"user_email"`
	Status            string            `json:"status"`
	Details           map[string]string `json:"details,omitempty"`
	Timestamp         string            `json:"timestamp"`
}

// EventPublisher POSTs events to a webhook. An empty URL disables publishing.
type EventPublisher struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewEventPublisher creates a publisher for the given webhook URL.
func NewEventPublisher(url, token string) *EventPublisher {
	return &EventPublisher{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends one event. Disabled publishers return nil immediately.
func (p *EventPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.url == "" {
		return nil
	}

	event.Timestamp = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build event request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to post event")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("event webhook returned %d", resp.StatusCode)
	}

	slog.Info("event_published", "channel", event.Channel, "type", event.Type, "request_identifier", event.RequestIdentifier)
	return nil
}
