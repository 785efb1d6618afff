package facts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/infopanel-golang/internal/clock"
)

type stubFetcher struct {
	mu     sync.Mutex
	calls  int
	dates  []string
	result string
}

func (f *stubFetcher) FetchWithRetry(_ context.Context, date string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dates = append(f.dates, date)
	return f.result
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(result string) (*Service, *stubFetcher, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(time.Date(2025, time.March, 7, 12, 0, 0, 0, time.Local))
	fetcher := &stubFetcher{result: result}
	svc := NewService(fetcher, clock.NewSource(clk), clk, 30*time.Minute)
	return svc, fetcher, clk
}

func TestServiceStartsWithPlaceholder(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(FactMarker + "x")
	assert.Equal(t, PlaceholderFact, svc.Fact())
}

func TestServiceSeedsOnFirstRefresh(t *testing.T) {
	t.Parallel()

	svc, fetcher, _ := newTestService(FactMarker + "Honey never spoils.")

	svc.refresh(context.Background())

	assert.Equal(t, FactMarker+"Honey never spoils.", svc.Fact())
	assert.Equal(t, []string{"2025-03-07"}, fetcher.dates)
}

func TestServiceSameDayDoesNotRefetch(t *testing.T) {
	t.Parallel()

	svc, fetcher, clk := newTestService(FactMarker + "x")

	svc.refresh(context.Background())
	clk.Advance(30 * time.Minute)
	svc.refresh(context.Background())

	assert.Equal(t, 1, fetcher.callCount())
}

func TestServiceDayRolloverRefetches(t *testing.T) {
	t.Parallel()

	svc, fetcher, clk := newTestService(FactMarker + "x")

	svc.refresh(context.Background())
	clk.Advance(24 * time.Hour)
	svc.refresh(context.Background())

	assert.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, []string{"2025-03-07", "2025-03-08"}, fetcher.dates)
}

func TestServiceKeepsLastGoodFactOnFailure(t *testing.T) {
	t.Parallel()

	svc, fetcher, clk := newTestService(FactMarker + "good")

	svc.refresh(context.Background())
	require.Equal(t, FactMarker+"good", svc.Fact())

	// Next day the endpoint is down; the D value stays on screen and the
	// failed day is not retried until the next rollover
	fetcher.mu.Lock()
	fetcher.result = SentinelRetriesExhausted
	fetcher.mu.Unlock()

	clk.Advance(24 * time.Hour)
	svc.refresh(context.Background())
	assert.Equal(t, FactMarker+"good", svc.Fact())

	clk.Advance(30 * time.Minute)
	svc.refresh(context.Background())
	assert.Equal(t, 2, fetcher.callCount())
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	svc, _, clk := newTestService(FactMarker + "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	// Wait until the worker is parked on its ticker before cancelling
	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
}

func TestServiceRunRefreshesOnTick(t *testing.T) {
	t.Parallel()

	svc, fetcher, clk := newTestService(FactMarker + "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))
	require.Equal(t, 1, fetcher.callCount())

	// Cross midnight; the 30 minute poll notices the rollover
	clk.Advance(13 * time.Hour)
	assert.Eventually(t, func() bool {
		return fetcher.callCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
