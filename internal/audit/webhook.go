package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/acuhire/internal/core/events"
)

var ErrSinkQueueFull = errors.New("audit sink queue full")

type WebhookConfig struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	MaxWorkers  int
	QueueSize   int
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after that.
	Backoff time.Duration
}

// WebhookSink posts audit events to an HTTP collector. Events are queued and
// delivered by a fixed pool of workers so the bus never waits on the network.
type WebhookSink struct {
	cfg    WebhookConfig
	http   *http.Client
	logger *slog.Logger

	jobs     chan events.Event
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	shutdown bool
}

func NewWebhookSink(cfg WebhookConfig, logger *slog.Logger) *WebhookSink {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &WebhookSink{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		jobs:   make(chan events.Event, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.work(i)
	}
	logger.Info("audit webhook sink started", "max_workers", cfg.MaxWorkers, "queue_size", cfg.QueueSize)
	return s
}

func (s *WebhookSink) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeAuditRecorded, s.Handle)
}

// Handle queues the event. A full queue drops it with an error, which the bus
// logs; the entry itself is already stored.
func (s *WebhookSink) Handle(_ context.Context, event events.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.shutdown {
		return errors.New("audit sink is shut down")
	}
	select {
	case s.jobs <- event:
		return nil
	default:
		return ErrSinkQueueFull
	}
}

// Shutdown stops accepting events and waits for the queue to drain until ctx
// is done, after which in-flight requests are cancelled.
func (s *WebhookSink) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if !s.shutdown {
		s.shutdown = true
		close(s.jobs)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("audit sink shutdown timed out, dropping queued events", "queued", len(s.jobs))
		s.cancel()
		<-done
	}
	s.cancel()
}

func (s *WebhookSink) work(id int) {
	defer s.wg.Done()
	for event := range s.jobs {
		if err := s.deliver(event); err != nil {
			s.logger.Error("audit event delivery failed", "worker_id", id, "event_id", event.EventID(), "error", err)
		}
	}
}

func (s *WebhookSink) deliver(event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	wait := s.cfg.Backoff
	for attempt := 1; ; attempt++ {
		err = s.post(event.EventID(), body)
		if err == nil {
			return nil
		}
		var rejected *rejectedError
		if errors.As(err, &rejected) || attempt >= s.cfg.MaxAttempts {
			return err
		}
		s.logger.Warn("audit event delivery attempt failed, retrying", "event_id", event.EventID(), "attempt", attempt, "error", err)
		select {
		case <-time.After(wait):
			wait *= 2
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

type rejectedError struct {
	status int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("collector rejected event with status %d", e.status)
}

func (s *WebhookSink) post(eventID string, body []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// collectors dedupe retried deliveries on this
	req.Header.Set("Idempotency-Key", eventID)
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post to collector: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	default:
		return &rejectedError{status: resp.StatusCode}
	}
}
