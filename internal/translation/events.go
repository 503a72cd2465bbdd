// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"sync"

	"github.com/olegiv/survey-i18n/internal/model"
)

// EventHandler receives translation events. Handlers run synchronously on
// the publishing goroutine and must not block.
type EventHandler func(model.TranslationEvent)

// EventBus fans translation events out to subscribers.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]EventHandler
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]EventHandler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *EventBus) Subscribe(h EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber.
func (b *EventBus) Publish(ev model.TranslationEvent) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
