package refresh

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// View names one client-side data set that events can make stale.
type View string

const (
	ViewCalendar   View = "calendar"
	ViewMetrics    View = "metrics"
	ViewBookings   View = "bookings"
	ViewMessages   View = "messages"
	ViewPricing    View = "pricing"
	ViewPromotions View = "promotions"
	ViewReviews    View = "reviews"
	ViewUsers      View = "users"
)

// Fetcher loads the current contents of a view.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	fetch Fetcher
	data  any
	has   bool
	fresh bool
	gen   uint64 // bumped by every invalidation
}

// Cache holds the last fetched data per view. Invalidation only marks a view
// stale; the next Get re-fetches.
type Cache struct {
	mu      sync.Mutex
	entries map[View]*entry
	hooks   []func(View)
}

func NewCache() *Cache {
	return &Cache{entries: make(map[View]*entry)}
}

// Register installs the fetcher for v. Any cached data is dropped.
func (c *Cache) Register(v View, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[v] = &entry{fetch: fetch}
}

// OnStale registers a hook called after a view is invalidated.
func (c *Cache) OnStale(fn func(View)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

func (c *Cache) Invalidate(views ...View) {
	c.mu.Lock()
	var marked []View
	for _, v := range views {
		e, ok := c.entries[v]
		if !ok {
			continue
		}
		e.gen++
		e.fresh = false
		marked = append(marked, v)
	}
	hooks := append([]func(View){}, c.hooks...)
	c.mu.Unlock()

	for _, v := range marked {
		for _, h := range hooks {
			callHook(h, v)
		}
	}
}

func callHook(h func(View), v View) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[refresh] stale hook for %s panicked: %v", v, r)
		}
	}()
	h(v)
}

// Get returns the cached data for v, fetching first if it is stale.
// Overlapping fetches all store their result as they complete; the view is
// only marked fresh when nothing invalidated it after the fetch started.
func (c *Cache) Get(ctx context.Context, v View) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[v]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("refresh: unknown view %q", v)
	}
	if e.fresh {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	fetch, started := e.fetch, e.gen
	c.mu.Unlock()

	data, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", v, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[v]; !ok || cur != e {
		// re-registered while fetching
		return data, nil
	}
	e.data = data
	e.has = true
	e.fresh = started == e.gen
	return data, nil
}

// Peek returns the cached data without fetching.
func (c *Cache) Peek(v View) (data any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[v]
	if !found || !e.has {
		return nil, false, false
	}
	return e.data, e.fresh, true
}

func (c *Cache) Stale(v View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[v]
	return ok && !e.fresh
}
