package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/olegiv/survey-i18n/internal/model"
)

// Dispatcher queues events and delivers them to endpoints from a pool of
// workers, retrying transient failures with exponential backoff.
type Dispatcher struct {
	endpoints []Endpoint
	logger    *slog.Logger
	client    *http.Client
	clock     clockwork.Clock
	cfg       Config

	queue   chan *QueuedDelivery
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// QueuedDelivery is one event bound for one endpoint.
type QueuedDelivery struct {
	DeliveryID string
	Event      string
	Payload    []byte
	Endpoint   Endpoint
}

// Config holds dispatcher configuration.
type Config struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BlockPrivateNetworks refuses to connect to private or reserved
	// addresses. It has no effect together with WithHTTPClient.
	BlockPrivateNetworks bool
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    MaxAttempts,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
	}
}

// Stats counts delivery outcomes since start.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the delivery HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithClock sets the clock used for retry backoff.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// NewDispatcher creates a dispatcher for endpoints.
func NewDispatcher(endpoints []Endpoint, logger *slog.Logger, cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		endpoints: endpoints,
		logger:    logger.With("component", "webhook"),
		client:    newHTTPClient(cfg.BlockPrivateNetworks),
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
		queue:     make(chan *QueuedDelivery, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start starts the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher",
		"workers", d.cfg.Workers,
		"endpoints", len(d.endpoints))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the workers and waits for in-flight deliveries to return.
// Queued deliveries that have not started are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch queues event for every endpoint subscribed to its type.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		return errors.New("webhook dispatcher not running")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, ep := range d.endpoints {
		if !ep.HasEvent(event.Type) {
			continue
		}
		qd := &QueuedDelivery{
			DeliveryID: event.ID,
			Event:      event.Type,
			Payload:    payload,
			Endpoint:   ep,
		}
		select {
		case d.queue <- qd:
		default:
			d.dropped.Add(1)
			d.logger.Warn("webhook queue full, delivery dropped",
				"delivery_id", event.ID,
				"event_type", event.Type,
				"url", ep.URL)
		}
	}
	return nil
}

// Notify dispatches a translation event. It has the shape of a
// translation event handler and never blocks.
func (d *Dispatcher) Notify(ev model.TranslationEvent) {
	if err := d.Dispatch(context.Background(), NewEvent(ev)); err != nil {
		d.logger.Debug("translation event not dispatched", "event_type", ev.Type, "error", err)
	}
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}
