package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/models"
	"staybook/realtime"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]View
}

func (r *recorder) Invalidate(views ...View) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]View(nil), views...))
	r.mu.Unlock()
}

func (r *recorder) last() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestRouterMapsEventsToViews(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(rec, nil)

	cases := map[models.EventType][]View{
		models.EventNewBooking:       {ViewCalendar, ViewMetrics, ViewBookings},
		models.EventBookingCancelled: {ViewCalendar, ViewMetrics, ViewBookings},
		models.EventCalendarUpdate:   {ViewCalendar},
		models.EventNewMessage:       {ViewMessages},
		models.EventAnalyticsUpdate:  {ViewMetrics},
		models.EventPricingUpdate:    {ViewPricing},
		models.EventPromotionUpdate:  {ViewPromotions, ViewPricing},
		models.EventReviewUpdate:     {ViewReviews},
		models.EventUsersUpdate:      {ViewUsers},
	}
	for typ, want := range cases {
		require.True(t, r.Route(models.Message{Type: typ}), typ)
		assert.ElementsMatch(t, want, rec.last(), typ)
	}

	n := rec.count()
	assert.False(t, r.Route(models.Message{Type: "mystery"}))
	assert.False(t, r.Route(models.Message{Type: models.EventPong}))
	assert.Equal(t, n, rec.count(), "unknown types are ignored")
}

func TestRouterCoversEveryKnownEvent(t *testing.T) {
	for _, typ := range models.KnownEvents {
		assert.Contains(t, DefaultRoutes, typ)
	}
	r := NewRouter(&recorder{}, nil)
	assert.Equal(t, []View{
		ViewBookings, ViewCalendar, ViewMessages, ViewMetrics,
		ViewPricing, ViewPromotions, ViewReviews, ViewUsers,
	}, r.Views())
}

type fakeSubscriber struct {
	handlers map[models.EventType]realtime.Handler
	offs     int
}

func (f *fakeSubscriber) On(t models.EventType, h realtime.Handler) func() {
	f.handlers[t] = h
	return func() {
		f.offs++
		delete(f.handlers, t)
	}
}

func TestRouterAttach(t *testing.T) {
	rec := &recorder{}
	sub := &fakeSubscriber{handlers: map[models.EventType]realtime.Handler{}}
	detach := NewRouter(rec, nil).Attach(sub)

	require.Len(t, sub.handlers, len(DefaultRoutes))
	sub.handlers[models.EventPromotionUpdate](models.Message{Type: models.EventPromotionUpdate})
	assert.ElementsMatch(t, []View{ViewPromotions, ViewPricing}, rec.last())

	detach()
	assert.Empty(t, sub.handlers)
	assert.Equal(t, len(DefaultRoutes), sub.offs)
}

func TestCacheInvalidateOnlyMarksStale(t *testing.T) {
	var fetches int32
	c := NewCache()
	c.Register(ViewCalendar, func(context.Context) (any, error) {
		return atomic.AddInt32(&fetches, 1), nil
	})
	var staled []View
	c.OnStale(func(v View) { staled = append(staled, v) })

	ctx := context.Background()
	got, err := c.Get(ctx, ViewCalendar)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)

	got, err = c.Get(ctx, ViewCalendar)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got, "fresh data is served from cache")

	c.Invalidate(ViewCalendar, ViewUsers)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "invalidation does not fetch")
	assert.True(t, c.Stale(ViewCalendar))
	assert.Equal(t, []View{ViewCalendar}, staled, "unregistered views are skipped")

	data, fresh, ok := c.Peek(ViewCalendar)
	assert.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, int32(1), data)

	got, err = c.Get(ctx, ViewCalendar)
	require.NoError(t, err)
	assert.Equal(t, int32(2), got)
	assert.False(t, c.Stale(ViewCalendar))

	_, err = c.Get(ctx, ViewUsers)
	assert.Error(t, err)
}

func TestStaleHooksRunInOrderPastAPanic(t *testing.T) {
	c := NewCache()
	c.Register(ViewCalendar, func(context.Context) (any, error) { return nil, nil })
	var order []string
	c.OnStale(func(View) { order = append(order, "first") })
	c.OnStale(func(View) { panic("boom") })
	c.OnStale(func(v View) {
		order = append(order, "last")
		// hooks added while notifying wait for the next invalidation
		c.OnStale(func(View) { order = append(order, "late") })
	})

	c.Invalidate(ViewCalendar)
	assert.Equal(t, []string{"first", "last"}, order)

	c.Invalidate(ViewCalendar)
	assert.Equal(t, []string{"first", "last", "first", "last", "late"}, order)
}

func TestCacheInvalidationDuringFetchKeepsViewStale(t *testing.T) {
	c := NewCache()
	release := make(chan struct{})
	entered := make(chan struct{})
	var n int32
	c.Register(ViewBookings, func(context.Context) (any, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			close(entered)
			<-release
			return "slow", nil
		}
		return "fast", nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), ViewBookings)
	}()
	<-entered

	c.Invalidate(ViewBookings)
	got, err := c.Get(context.Background(), ViewBookings)
	require.NoError(t, err)
	assert.Equal(t, "fast", got)
	assert.False(t, c.Stale(ViewBookings))

	close(release)
	<-done

	// the slow fetch completed last, so its data is kept, but it started
	// before the invalidation and cannot mark the view fresh
	data, fresh, _ := c.Peek(ViewBookings)
	assert.Equal(t, "slow", data)
	assert.False(t, fresh)
}

func TestCacheFetchError(t *testing.T) {
	c := NewCache()
	c.Register(ViewMetrics, func(context.Context) (any, error) { return nil, errors.New("down") })
	_, err := c.Get(context.Background(), ViewMetrics)
	assert.ErrorContains(t, err, "down")
	assert.True(t, c.Stale(ViewMetrics))
}

type fakeSource struct {
	state realtime.State
	subs  []realtime.StateHandler
}

func (f *fakeSource) State() realtime.State                 { return f.state }
func (f *fakeSource) OnStateChange(h realtime.StateHandler) { f.subs = append(f.subs, h) }
func (f *fakeSource) set(s realtime.State) {
	f.state = s
	for _, h := range f.subs {
		h(s)
	}
}

func TestPollerFollowsConnectivity(t *testing.T) {
	var ticks int32
	p := NewPoller(2*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	defer p.Close()

	src := &fakeSource{state: realtime.StateConnected}
	p.Watch(src)
	assert.False(t, p.Running())

	src.set(realtime.StateDisconnected)
	assert.True(t, p.Running())
	src.set(realtime.StateReconnecting)
	src.set(realtime.StateError)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, time.Second, time.Millisecond)

	src.set(realtime.StateConnected)
	assert.False(t, p.Running())
	stopped := atomic.LoadInt32(&ticks)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&ticks), "no ticks once connected")
}

func TestPollerSingleLoop(t *testing.T) {
	var ticks int32
	p := NewPoller(10*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Observe(realtime.StateDisconnected)
	}
	time.Sleep(55 * time.Millisecond)
	// one loop at 10ms gives about five ticks; five loops would give ~25
	assert.LessOrEqual(t, atomic.LoadInt32(&ticks), int32(7))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(1))
}

func TestPollerStartsWhenNeverConnected(t *testing.T) {
	p := NewPoller(time.Hour, func() {})
	p.Watch(&fakeSource{state: realtime.StateError})
	assert.True(t, p.Running())

	p.Close()
	assert.False(t, p.Running())
	p.Observe(realtime.StateDisconnected)
	assert.False(t, p.Running(), "closed pollers stay closed")
}

func TestFallbackRefreshesRoutedViews(t *testing.T) {
	c := NewCache()
	for _, v := range NewRouter(c, nil).Views() {
		v := v
		c.Register(v, func(context.Context) (any, error) { return string(v), nil })
		_, err := c.Get(context.Background(), v)
		require.NoError(t, err)
	}

	router := NewRouter(c, nil)
	p := NewPoller(2*time.Millisecond, router.InvalidateAll)
	defer p.Close()
	p.Observe(realtime.StateReconnecting)

	require.Eventually(t, func() bool {
		for _, v := range router.Views() {
			if !c.Stale(v) {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)
}
