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


// Package limiter bounds concurrent PDF extraction per subscription
// tier. All jobs of one tier share that tier's slots; a full tier makes
// new extractions fail fast instead of queueing behind long documents.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/quillstore/quill/core"
)

// acquireTimeout is how long Acquire waits for a slot before giving up.
// Kept short so an over-limit upload is rejected quickly.
const acquireTimeout = 100 * time.Millisecond

// ConcurrencyLimitError reports that a tier's extraction slots were all
// busy.
type ConcurrencyLimitError struct {
	Tier  string
	Limit int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("tier %q at its concurrent extraction limit (%d)", e.Tier, e.Limit)
}

type tierState struct {
	sem   *semaphore.Weighted
	limit int
	inUse int
}

// Limiter gates extraction slots per tier.
type Limiter struct {
	mu    sync.Mutex
	tiers map[string]*tierState
	log   *slog.Logger
}

// New creates a Limiter with one semaphore per known tier. A nil logger
// falls back to slog.Default.
func New(logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	tiers := make(map[string]*tierState)
	for _, tier := range []core.Tier{core.TierFree, core.TierStarter, core.TierPro} {
		tiers[tier.Name] = &tierState{
			sem:   semaphore.NewWeighted(int64(tier.MaxConcurrentExtractions)),
			limit: tier.MaxConcurrentExtractions,
		}
	}
	return &Limiter{
		tiers: tiers,
		log:   logger.With("component", "limiter"),
	}
}

// Acquire claims an extraction slot for the tier, waiting briefly for
// one to free up. Returns a ConcurrencyLimitError when the tier stays
// full. Unknown tiers use the free tier's slots.
func (l *Limiter) Acquire(ctx context.Context, tier, jobID string) error {
	state := l.state(tier)

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	if err := state.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Warn("extraction slot unavailable", "tier", tier, "job_id", jobID, "limit", state.limit)
		return &ConcurrencyLimitError{Tier: core.TierByName(tier).Name, Limit: state.limit}
	}

	l.mu.Lock()
	state.inUse++
	l.mu.Unlock()
	l.log.Debug("extraction slot acquired", "tier", tier, "job_id", jobID)
	return nil
}

// Release returns a previously acquired slot.
func (l *Limiter) Release(tier, jobID string) {
	state := l.state(tier)

	l.mu.Lock()
	if state.inUse == 0 {
		l.mu.Unlock()
		l.log.Warn("release without matching acquire", "tier", tier, "job_id", jobID)
		return
	}
	state.inUse--
	l.mu.Unlock()

	state.sem.Release(1)
	l.log.Debug("extraction slot released", "tier", tier, "job_id", jobID)
}

// TierUsage reports the slot usage of one tier.
type TierUsage struct {
	Limit int
	InUse int
}

// Stats returns current slot usage per tier.
func (l *Limiter) Stats() map[string]TierUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := make(map[string]TierUsage, len(l.tiers))
	for name, state := range l.tiers {
		stats[name] = TierUsage{Limit: state.limit, InUse: state.inUse}
	}
	return stats
}

func (l *Limiter) state(tier string) *tierState {
	return l.tiers[core.TierByName(tier).Name]
}
