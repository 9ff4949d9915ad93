package refresh

import (
	"sort"

	"staybook/models"
	"staybook/realtime"
)

// DefaultRoutes maps each mutation event to the views it makes stale.
var DefaultRoutes = map[models.EventType][]View{
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

type Invalidator interface {
	Invalidate(views ...View)
}

// Subscriber is the event side of realtime.Manager.
type Subscriber interface {
	On(t models.EventType, h realtime.Handler) func()
}

// Router turns events into invalidations. It never fetches.
type Router struct {
	routes map[models.EventType][]View
	target Invalidator
}

// NewRouter routes into target. A nil routes map means DefaultRoutes.
func NewRouter(target Invalidator, routes map[models.EventType][]View) *Router {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Router{routes: routes, target: target}
}

// Route invalidates the views mapped to msg.Type and reports whether the
// type was routed at all.
func (r *Router) Route(msg models.Message) bool {
	views, ok := r.routes[msg.Type]
	if !ok {
		return false
	}
	r.target.Invalidate(views...)
	return true
}

// Views is the union of every routed view, sorted.
func (r *Router) Views() []View {
	seen := make(map[View]bool)
	var out []View
	for _, views := range r.routes {
		for _, v := range views {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InvalidateAll marks every routed view stale.
func (r *Router) InvalidateAll() {
	r.target.Invalidate(r.Views()...)
}

// Attach subscribes the router to every routed event type on s. The
// returned func detaches all of them.
func (r *Router) Attach(s Subscriber) func() {
	types := make([]models.EventType, 0, len(r.routes))
	for t := range r.routes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	offs := make([]func(), 0, len(types))
	for _, t := range types {
		offs = append(offs, s.On(t, func(msg models.Message) { r.Route(msg) }))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
