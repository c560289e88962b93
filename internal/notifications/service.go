package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stemfetch/internal/config"
	"stemfetch/internal/logging"
)

const userAgent = "stemfetch/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyDownloadCompleted(ctx context.Context, recordingID, localPath string) error
	NotifyRunCompleted(ctx context.Context, recordingID, finalPath string, transcripts []string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a webhook-backed notification service. When no webhooks
// are configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	endpoints := make([]string, 0, len(cfg.Notifications.Webhooks))
	for _, raw := range cfg.Notifications.Webhooks {
		if url := strings.TrimSpace(raw); url != "" {
			endpoints = append(endpoints, url)
		}
	}
	if len(endpoints) == 0 {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &webhookService{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type payload struct {
	Event       string   `json:"event"`
	RecordingID string   `json:"recording_id,omitempty"`
	Message     string   `json:"message"`
	FinalPath   string   `json:"final_path,omitempty"`
	Transcripts []string `json:"transcripts,omitempty"`
}

type webhookService struct {
	endpoints []string
	client    *http.Client
	logger    *slog.Logger
}

func (w *webhookService) NotifyDownloadCompleted(ctx context.Context, recordingID, localPath string) error {
	return w.send(ctx, payload{
		Event:       "download.completed",
		RecordingID: recordingID,
		Message:     fmt.Sprintf("Download complete: %s", localPath),
	})
}

func (w *webhookService) NotifyRunCompleted(ctx context.Context, recordingID, finalPath string, transcripts []string) error {
	return w.send(ctx, payload{
		Event:       "run.completed",
		RecordingID: recordingID,
		Message:     fmt.Sprintf("Recording %s processed", recordingID),
		FinalPath:   finalPath,
		Transcripts: transcripts,
	})
}

func (w *webhookService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return w.send(ctx, payload{Event: "run.error", Message: builder.String()})
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, payload{Event: "test", Message: "Notification system test"})
}

// send posts the payload to every endpoint. Failures are independent; one
// unreachable endpoint never prevents delivery to the rest.
func (w *webhookService) send(ctx context.Context, data payload) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var errs []error
	for _, endpoint := range w.endpoints {
		if err := w.post(ctx, endpoint, body); err != nil {
			w.logger.Warn("webhook delivery failed",
				logging.String("endpoint", endpoint),
				logging.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *webhookService) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDownloadCompleted(context.Context, string, string) error       { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, string, []string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
