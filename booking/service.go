package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"staybook/availability"
	"staybook/db"
	"staybook/models"
)

var (
	ErrNotFound    = errors.New("reservation not found")
	ErrUnavailable = errors.New("dates unavailable")
	ErrInvalid     = errors.New("invalid reservation request")
)

const reasonNoNights = "Departure must be at least one day after arrival."

// Rejection is a validation verdict surfaced as an error. It matches
// ErrUnavailable with errors.Is.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }
func (r *Rejection) Unwrap() error { return ErrUnavailable }

type Repository interface {
	ListActive(ctx context.Context) ([]models.Reservation, error)
	Get(ctx context.Context, id string) (models.Reservation, error)
	Insert(ctx context.Context, res models.Reservation) error
	Cancel(ctx context.Context, id string) (models.Reservation, error)
}

// Locker serializes check-then-insert across writers.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	l.mu.Lock()
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

type Request struct {
	StartDate     string        `json:"startDate"`
	EndDate       string        `json:"endDate"`
	Source        models.Source `json:"source,omitempty"`
	GuestLabel    string        `json:"guestLabel,omitempty"`
	Price         float64       `json:"price,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
}

type Service struct {
	repo Repository
	lock Locker
	pub  Publisher
	opts availability.Options
	now  func() time.Time
}

func NewService(repo Repository, lock Locker, pub Publisher, opts availability.Options) *Service {
	if lock == nil {
		lock = &LocalLocker{}
	}
	return &Service{repo: repo, lock: lock, pub: pub, opts: opts, now: time.Now}
}

func (s *Service) Options() availability.Options { return s.opts }

func (s *Service) List(ctx context.Context) ([]models.Reservation, error) {
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Reservation, error) {
	res, err := s.repo.Get(ctx, id)
	if errors.Is(err, db.ErrNoReservation) {
		return res, ErrNotFound
	}
	return res, err
}

// Snapshot rebuilds the availability index from the current reservations.
func (s *Service) Snapshot(ctx context.Context) (*availability.Index, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return availability.Build(list), nil
}

// Check returns the verdict for a stay without booking it.
func (s *Service) Check(ctx context.Context, from, to string) (availability.Result, error) {
	c, verdict, ok := availability.ParseCandidate(from, to)
	if !ok {
		return verdict, nil
	}
	ix, err := s.Snapshot(ctx)
	if err != nil {
		return availability.Result{}, err
	}
	return ix.CheckStay(c, s.opts), nil
}

// Arrivals lists the reserved arrival days as YYYY-MM-DD.
func (s *Service) Arrivals(ctx context.Context) ([]string, error) {
	ix, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	days := ix.Arrivals()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(models.DayLayout)
	}
	return out, nil
}

func (s *Service) Month(ctx context.Context, year int, month time.Month) ([]availability.DayState, error) {
	if month < time.January || month > time.December || year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: no such month %d-%02d", ErrInvalid, year, month)
	}
	ix, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Month(year, month), nil
}

// Create books a guest stay. Blocks go through Block.
func (s *Service) Create(ctx context.Context, req Request) (models.Reservation, error) {
	if req.Source == "" {
		req.Source = models.SourceDirect
	}
	if !req.Source.Valid() || req.Source == models.SourceBlocked {
		return models.Reservation{}, fmt.Errorf("%w: unknown source %q", ErrInvalid, req.Source)
	}
	if req.Price < 0 {
		return models.Reservation{}, fmt.Errorf("%w: negative price", ErrInvalid)
	}
	return s.reserve(ctx, req, false)
}

// Block takes dates off the calendar. A same-day block marks a single day.
func (s *Service) Block(ctx context.Context, from, to, note string) (models.Reservation, error) {
	return s.reserve(ctx, Request{
		StartDate:  from,
		EndDate:    to,
		Source:     models.SourceBlocked,
		GuestLabel: note,
	}, true)
}

func (s *Service) reserve(ctx context.Context, req Request, allowSameDay bool) (models.Reservation, error) {
	c, verdict, ok := availability.ParseCandidate(req.StartDate, req.EndDate)
	if !ok {
		return models.Reservation{}, &Rejection{Reason: verdict.Reason}
	}
	if c.To.IsZero() {
		c.To = c.From.AddDate(0, 0, 1)
	}
	if !allowSameDay && !c.To.After(c.From) {
		if c.To.Before(c.From) {
			return models.Reservation{}, &Rejection{Reason: availability.ReasonPrecedes}
		}
		return models.Reservation{}, &Rejection{Reason: reasonNoNights}
	}

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return models.Reservation{}, err
	}
	defer release()

	ix, err := s.Snapshot(ctx)
	if err != nil {
		return models.Reservation{}, err
	}
	if res := ix.CheckStay(c, s.opts); !res.Valid {
		return models.Reservation{}, &Rejection{Reason: res.Reason}
	}

	res := models.Reservation{
		ID:            uuid.NewString(),
		StartDate:     c.From.Format(models.DayLayout),
		EndDate:       c.To.Format(models.DayLayout),
		Source:        req.Source,
		Status:        models.StatusConfirmed,
		GuestLabel:    strings.TrimSpace(req.GuestLabel),
		Price:         req.Price,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     s.now().UnixMilli(),
	}
	if err := s.repo.Insert(ctx, res); err != nil {
		return models.Reservation{}, err
	}
	log.Printf("[booking] %s %s..%s reserved (%s)", res.ID, res.StartDate, res.EndDate, res.Source)

	s.publish(ctx, models.EventNewBooking, res)
	s.publishCalendar(ctx, res)
	s.publish(ctx, models.EventAnalyticsUpdate, nil)
	return res, nil
}

// Cancel frees a reservation's dates.
func (s *Service) Cancel(ctx context.Context, id string) (models.Reservation, error) {
	res, err := s.repo.Cancel(ctx, id)
	if errors.Is(err, db.ErrNoReservation) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}
	log.Printf("[booking] %s cancelled", res.ID)

	s.publish(ctx, models.EventBookingCancelled, res)
	s.publishCalendar(ctx, res)
	s.publish(ctx, models.EventAnalyticsUpdate, nil)
	return res, nil
}

// publishCalendar emits one calendar_update per month the stay touches,
// checkout day included.
func (s *Service) publishCalendar(ctx context.Context, res models.Reservation) {
	for _, m := range touchedMonths(res) {
		s.publish(ctx, models.EventCalendarUpdate, m)
	}
}

func touchedMonths(res models.Reservation) []models.CalendarUpdate {
	start, err := res.Start()
	if err != nil {
		return nil
	}
	end, err := res.End()
	if err != nil || end.Before(start) {
		end = start
	}
	var out []models.CalendarUpdate
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		out = append(out, models.CalendarUpdate{Year: cur.Year(), Month: int(cur.Month())})
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// publish failures never undo a committed write; viewers fall back to polling.
func (s *Service) publish(ctx context.Context, t models.EventType, data any) {
	if s.pub == nil {
		return
	}
	msg, err := models.NewMessage(t, data)
	if err != nil {
		log.Printf("[booking] build %s: %v", t, err)
		return
	}
	if err := s.pub.Publish(ctx, msg); err != nil {
		log.Printf("[booking] publish %s: %v", t, err)
	}
}
