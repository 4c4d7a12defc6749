// Copyright 2025 Quillstore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler consumes one event. A handler that cannot make progress
// reports the failure itself (typically by failing the job and
// publishing IngestFailed); the bus only logs returned errors.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is an in-process publish/subscribe dispatcher. Ordered handlers
// run in subscription order on the publisher's goroutine; detached
// handlers run concurrently. Publish returns once every handler for the
// event has finished, so a chain of handlers that each publish the next
// stage behaves as one nested call tree and events for a single job are
// never processed out of order.
type Bus struct {
	mu       sync.RWMutex
	ordered  map[Kind][]Handler
	detached map[Kind][]Handler
	log      *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		ordered:  make(map[Kind][]Handler),
		detached: make(map[Kind][]Handler),
		log:      logger.With("component", "event_bus"),
	}
}

// Subscribe registers a handler that runs synchronously, in the order
// handlers were subscribed.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ordered[kind] = append(b.ordered[kind], h)
}

// SubscribeAsync registers a handler that runs on its own goroutine.
// Publish still waits for it to finish.
func (b *Bus) SubscribeAsync(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detached[kind] = append(b.detached[kind], h)
}

// Publish dispatches the event to every subscribed handler and blocks
// until all of them have returned. Handler errors and panics are logged
// and never propagate to the publisher; a broken listener must not take
// down the pipeline or its sibling listeners.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	ordered := append([]Handler(nil), b.ordered[event.Kind()]...)
	detached := append([]Handler(nil), b.detached[event.Kind()]...)
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range detached {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			b.dispatch(ctx, h, event)
		}(h)
	}
	for _, h := range ordered {
		b.dispatch(ctx, h, event)
	}
	wg.Wait()
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panicked",
				"kind", event.Kind(),
				"job_id", event.Correlation().JobID,
				"panic", r)
		}
	}()
	if err := h.Handle(ctx, event); err != nil {
		b.log.Error("handler failed",
			"kind", event.Kind(),
			"job_id", event.Correlation().JobID,
			"error", err)
	}
}
