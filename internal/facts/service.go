package facts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
)

// factFetcher is the retry-wrapped fetch the service drives once per day
type factFetcher interface {
	FetchWithRetry(ctx context.Context, date string) string
}

// Service owns the in-memory fact of the day. A single background worker
// refreshes it on day rollover; the render loop reads it concurrently
// through Fact. The worker is the sole writer.
type Service struct {
	mu       sync.RWMutex
	fact     string
	fetcher  factFetcher
	source   *clock.Source
	clock    clockwork.Clock
	poll     time.Duration
	lastDate string
}

// NewService creates a fact service polling at the given interval. The fact
// starts as the placeholder until the first successful fetch.
func NewService(fetcher factFetcher, source *clock.Source, clk clockwork.Clock, poll time.Duration) *Service {
	return &Service{
		fact:    PlaceholderFact,
		fetcher: fetcher,
		source:  source,
		clock:   clk,
		poll:    poll,
	}
}

// Fact returns the current fact. Safe for concurrent use; the critical
// section is a single copy-out.
func (s *Service) Fact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fact
}

// Run executes the refresh loop until the context is cancelled. lastDate
// starts empty, so the first pass always fetches.
func (s *Service) Run(ctx context.Context) {
	s.refresh(ctx)

	ticker := s.clock.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("fact service stopping")
			return
		case <-ticker.Chan():
			s.refresh(ctx)
		}
	}
}

// refresh fetches a new fact if the local date rolled over. Panics are
// contained so a bad iteration never kills the worker. The last observed
// date advances even on failure: a failed day is retried only on the next
// rollover.
func (s *Service) refresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered in fact refresh")
		}
	}()

	today := s.source.Now().DateISO
	if today == s.lastDate {
		return
	}
	log.Info().Str("date", today).Str("was", s.lastDate).Msg("new day detected")

	fact := s.fetcher.FetchWithRetry(ctx, today)
	if strings.HasPrefix(fact, FactMarker) {
		s.mu.Lock()
		s.fact = fact
		s.mu.Unlock()
		log.Info().Str("date", today).Str("fact", fact).Msg("fact updated")
	} else {
		log.Warn().Str("date", today).Msg("failed to fetch today's fact, keeping current one")
	}

	s.lastDate = today
}
