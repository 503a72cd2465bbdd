package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/olegiv/survey-i18n/internal/model"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the debounce window. Events with the same key inside the
	// window are coalesced into the latest one.
	Interval time.Duration
	// MaxWait bounds how long an event can be held back.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: 1 * time.Second,
		MaxWait:  5 * time.Second,
	}
}

type pendingEvent struct {
	event     *Event
	timer     clockwork.Timer
	firstSeen time.Time
}

// Debouncer coalesces bursts of events for the same entity, such as
// several jobs of one survey completing together, into single deliveries.
type Debouncer struct {
	dispatcher *Dispatcher
	config     DebounceConfig
	clock      clockwork.Clock
	pending    map[string]*pendingEvent
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewDebouncer creates a debouncer in front of dispatcher.
func NewDebouncer(dispatcher *Dispatcher, config DebounceConfig, clock clockwork.Clock) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		dispatcher: dispatcher,
		config:     config,
		clock:      clock,
		pending:    make(map[string]*pendingEvent),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// eventKey groups events by type and entity.
func eventKey(event *Event) string {
	return event.Type + ":" + event.Data.Entity.String()
}

// Dispatch queues an event for debounced delivery.
func (d *Debouncer) Dispatch(_ context.Context, event *Event) error {
	key := eventKey(event)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		existing.event = mergeEvents(existing.event, event)
		if now.Sub(existing.firstSeen) >= d.config.MaxWait {
			d.dispatchLocked(key)
			return nil
		}
		existing.timer.Reset(d.config.Interval)
		return nil
	}

	pe := &pendingEvent{event: event, firstSeen: now}
	pe.timer = d.clock.AfterFunc(d.config.Interval, func() {
		d.mu.Lock()
		d.dispatchLocked(key)
		d.mu.Unlock()
	})
	d.pending[key] = pe
	return nil
}

// mergeEvents keeps the newer event and the union of both language sets.
func mergeEvents(older, newer *Event) *Event {
	merged := *newer
	seen := make(map[model.LanguageCode]struct{})
	var langs []model.LanguageCode
	for _, ev := range []*Event{older, newer} {
		for _, lang := range ev.Data.Languages {
			if _, dup := seen[lang]; dup {
				continue
			}
			seen[lang] = struct{}{}
			langs = append(langs, lang)
		}
	}
	merged.Data.Languages = langs
	return &merged
}

// dispatchLocked must be called with d.mu held.
func (d *Debouncer) dispatchLocked(key string) {
	pe, ok := d.pending[key]
	if !ok {
		return
	}
	pe.timer.Stop()
	delete(d.pending, key)

	d.wg.Add(1)
	go func(event *Event) {
		defer d.wg.Done()
		if err := d.dispatcher.Dispatch(d.ctx, event); err != nil {
			d.dispatcher.logger.Error("failed to dispatch debounced event",
				"error", err,
				"event_type", event.Type)
		}
	}(pe.event)
}

// Notify is the translation event handler entry point.
func (d *Debouncer) Notify(ev model.TranslationEvent) {
	_ = d.Dispatch(context.Background(), NewEvent(ev))
}

// Flush immediately dispatches all pending events.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.dispatchLocked(key)
	}
}

// Stop flushes pending events and waits for them to be queued.
func (d *Debouncer) Stop() {
	d.Flush()
	d.wg.Wait()
	d.cancel()
}

// PendingCount returns the number of pending events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
