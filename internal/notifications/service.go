package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/events"
	"vidsqueeze/internal/jobs"
	"vidsqueeze/internal/logging"
)

const userAgent = "vidsqueeze/0.1.0"

// JobLookup resolves job details for a message body.
type JobLookup func(ctx context.Context, id string) (jobs.Job, error)

// Notifier publishes finished-job messages to an ntfy topic.
type Notifier struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	lookup   JobLookup
	logger   *slog.Logger
	enabled  map[events.Outcome]bool

	wg sync.WaitGroup
}

// NewNotifier builds a Notifier from cfg, or returns nil when no ntfy topic
// is configured.
func NewNotifier(cfg *config.Config, lookup JobLookup, logger *slog.Logger) *Notifier {
	if cfg == nil {
		return nil
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := cfg.NotificationTimeout()
	return &Notifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		lookup:   lookup,
		logger:   logging.NewComponentLogger(logger, "notifications"),
		enabled: map[events.Outcome]bool{
			events.OutcomeSuccess:   cfg.Notifications.Success,
			events.OutcomeError:     cfg.Notifications.Errors,
			events.OutcomeCancelled: cfg.Notifications.Cancelled,
		},
	}
}

// Append implements events.Sink. Finished events for enabled outcomes are
// delivered in the background.
func (n *Notifier) Append(evt events.Event) {
	if n == nil || evt.Type != events.TypeFinished || !n.enabled[evt.Status] {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.NotifyFinished(ctx, evt); err != nil {
			logging.WarnWithContext(n.logger, "notification delivery failed", "notification_failed",
				logging.String(logging.FieldJobID, evt.JobID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no push message for this job"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

// NotifyFinished sends the message for a finished event synchronously.
func (n *Notifier) NotifyFinished(ctx context.Context, evt events.Event) error {
	name := evt.JobID
	if n.lookup != nil {
		if job, err := n.lookup(ctx, evt.JobID); err == nil {
			name = job.DisplayName()
		}
	}
	return n.send(ctx, finishedPayload(name, evt))
}

// TestNotification sends a low-priority message to confirm delivery works.
func (n *Notifier) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "vidsqueeze - Test",
		message:  "Notification system test",
		tags:     []string{"vidsqueeze", "test"},
		priority: "low",
	})
}

// Wait blocks until in-flight deliveries finish or ctx ends.
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func finishedPayload(name string, evt events.Event) payload {
	switch evt.Status {
	case events.OutcomeSuccess:
		message := fmt.Sprintf("Compressed: %s", name)
		if evt.OutputSizeBytes > 0 {
			message = fmt.Sprintf("%s (%s)", message, humanize.Bytes(uint64(evt.OutputSizeBytes)))
		}
		return payload{
			title:   "vidsqueeze - Done",
			message: message,
			tags:    []string{"vidsqueeze", "encode", "completed"},
		}
	case events.OutcomeError:
		detail := strings.TrimSpace(evt.Error)
		if detail == "" {
			detail = "unknown"
		}
		return payload{
			title:    "vidsqueeze - Error",
			message:  fmt.Sprintf("Failed: %s\n%s", name, detail),
			tags:     []string{"vidsqueeze", "error", "alert"},
			priority: "high",
		}
	default:
		return payload{
			title:   "vidsqueeze - Cancelled",
			message: fmt.Sprintf("Cancelled: %s", name),
			tags:    []string{"vidsqueeze", "encode", "cancelled"},
		}
	}
}

func (n *Notifier) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
