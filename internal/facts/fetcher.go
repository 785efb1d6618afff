package facts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fkcurrie/infopanel-golang/internal/config"
)

// FactMarker prefixes every valid fact. The failure sentinels below do not
// carry it, so callers can tell success from failure with one prefix check.
const FactMarker = "Today's fact: "

// Sentinel values returned on fetch failures. None of them start with
// FactMarker.
const (
	SentinelFetchFailed      = "Could not fetch today's fact"
	SentinelParseError       = "Error parsing today's fact"
	SentinelMissingText      = "Today's fact not found in response"
	SentinelRetriesExhausted = "Could not fetch fact after retries"
)

// PlaceholderFact is shown until the first successful fetch
const PlaceholderFact = "Waiting for network... fact loading in background"

// maxFactLen bounds the sanitized fact; longer texts are truncated to
// truncateAt bytes (backed off to a rune boundary) plus an ellipsis.
const (
	maxFactLen = 150
	truncateAt = 147
)

// Fetcher retrieves the fact of the day, reading through the on-disk cache
type Fetcher struct {
	client    *http.Client
	store     *Store
	clock     clockwork.Clock
	url       string
	userAgent string
	retries   int
	retryWait time.Duration
}

// NewFetcher creates a fetcher. A nil client gets a default with the
// configured timeout; redirects are followed by default.
func NewFetcher(client *http.Client, store *Store, clk clockwork.Clock, cfg config.FactsConfig) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return &Fetcher{
		client:    client,
		store:     store,
		clock:     clk,
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		retries:   cfg.Retries,
		retryWait: time.Duration(cfg.RetryWaitSeconds) * time.Second,
	}
}

// FetchOrLoad returns the fact for the given date, preferring the cache over
// the network. On success the result starts with FactMarker and has been
// written through to the cache; on failure it is one of the sentinels.
func (f *Fetcher) FetchOrLoad(ctx context.Context, date string) string {
	if fact, ok := f.store.Load(date); ok {
		log.Debug().Str("date", date).Msg("loaded cached fact")
		return fact
	}

	log.Info().Str("date", date).Msg("fetching today's fact")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		log.Warn().Err(err).Msg("failed to build fact request")
		return SentinelFetchFailed
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("fact request failed")
		return SentinelFetchFailed
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read fact response")
		return SentinelFetchFailed
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("fact endpoint returned non-OK status")
		return SentinelFetchFailed
	}

	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("failed to parse fact response")
		return SentinelParseError
	}
	if payload.Text == nil {
		return SentinelMissingText
	}

	fact := FactMarker + sanitizeText(*payload.Text)

	if err := f.store.Save(date, fact); err != nil {
		log.Warn().Err(err).Str("date", date).Msg("failed to cache fact")
	} else {
		log.Info().Str("date", date).Msg("cached today's fact")
	}

	return fact
}

// FetchWithRetry wraps FetchOrLoad with bounded retries, sleeping between
// attempts. Success is a FactMarker prefix match; after exhaustion it
// returns SentinelRetriesExhausted.
func (f *Fetcher) FetchWithRetry(ctx context.Context, date string) string {
	for attempt := 1; attempt <= f.retries; attempt++ {
		fact := f.FetchOrLoad(ctx, date)
		if strings.HasPrefix(fact, FactMarker) {
			return fact
		}
		log.Warn().Int("attempt", attempt).Dur("wait", f.retryWait).Msg("fact fetch failed, retrying")
		if attempt == f.retries {
			break
		}
		select {
		case <-ctx.Done():
			return SentinelRetriesExhausted
		case <-f.clock.After(f.retryWait):
		}
	}
	return SentinelRetriesExhausted
}

// sanitizeText flattens the raw fact text for the one-line LED scroll:
// newlines become spaces, space runs collapse, edges are trimmed and
// over-long texts are truncated at a rune boundary with an ellipsis.
func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	text = strings.Trim(text, " ")
	if len(text) > maxFactLen {
		cut := truncateAt
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}
