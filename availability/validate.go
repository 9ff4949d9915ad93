package availability

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxStayDays bounds candidate ranges so downstream iteration stays small.
const DefaultMaxStayDays = 15

var (
	ReasonArrivalRequired  = "Please select an arrival date."
	ReasonArrivalInvalid   = "Arrival date is not a valid day."
	ReasonDepartureInvalid = "Departure date is not a valid day."
	ReasonPrecedes         = "Departure precedes arrival."
	ReasonArrivalReserved  = "That day is reserved for another guest's check-in."
	ReasonCrossesArrival   = "Your stay crosses another guest's arrival."
	ReasonNightsOccupied   = "Your stay overlaps nights already booked by another guest."
)

// ReasonMaxStay is the rejection text for ranges longer than maxStayDays.
func ReasonMaxStay(maxStayDays int) string {
	return fmt.Sprintf("Maximum stay is %d days. Please select a shorter period.", maxStayDays)
}

// Candidate is a proposed stay. A zero From means no arrival was picked;
// a zero To defaults to a one-night stay.
type Candidate struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type Options struct {
	// MaxStayDays falls back to DefaultMaxStayDays when not positive.
	MaxStayDays int
	// Strict additionally applies RuleNoOccupiedNights in Index.CheckStay.
	Strict bool
}

func (o Options) maxStay() int {
	if o.MaxStayDays <= 0 {
		return DefaultMaxStayDays
	}
	return o.MaxStayDays
}

// Result is the verdict. Reason is set whenever Valid is false.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func reject(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

// Validate decides whether a candidate stay may be booked against the arrival
// days of existing reservations. It only looks at arrivals: the arrival day
// must not be someone else's arrival and no interior day may be one either.
// The departure day is never checked, so a checkout may share its day with
// another guest's check-in.
//
// Validate never panics; every failure is reported in the Result.
func Validate(c Candidate, existingArrivals []time.Time, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = reject(fmt.Sprintf("Unexpected validation error – %v", r))
		}
	}()

	from, to, verdict, ok := normalize(c, opts)
	if !ok {
		return verdict
	}

	reserved := arrivalSet(existingArrivals)
	if _, taken := reserved[from]; taken {
		return reject(ReasonArrivalReserved)
	}
	for ord := from + 1; ord < to; ord++ {
		if _, taken := reserved[ord]; taken {
			return reject(ReasonCrossesArrival)
		}
	}
	return Result{Valid: true}
}

// normalize runs the shape checks shared by Validate and Index.CheckStay and
// returns the arrival and departure ordinals.
func normalize(c Candidate, opts Options) (from, to int64, res Result, ok bool) {
	if c.From.IsZero() {
		return 0, 0, reject(ReasonArrivalRequired), false
	}
	if !wellFormed(c.From) {
		return 0, 0, reject(ReasonArrivalInvalid), false
	}

	end := c.To
	if end.IsZero() {
		end = c.From.AddDate(0, 0, 1)
	}
	if !wellFormed(end) {
		return 0, 0, reject(ReasonDepartureInvalid), false
	}

	from, to = Ordinal(c.From), Ordinal(end)
	nights := to - from
	if nights < 0 {
		return 0, 0, reject(ReasonPrecedes), false
	}
	if maxStay := opts.maxStay(); nights > int64(maxStay) {
		return 0, 0, reject(ReasonMaxStay(maxStay)), false
	}
	return from, to, Result{Valid: true}, true
}

func arrivalSet(days []time.Time) map[int64]struct{} {
	set := make(map[int64]struct{}, len(days))
	for _, d := range days {
		if !wellFormed(d) {
			continue
		}
		set[Ordinal(d)] = struct{}{}
	}
	return set
}

// ValidateDays is the string entry point used by HTTP and CLI callers.
// Empty strings count as missing; unparsable arrivals are skipped.
func ValidateDays(from, to string, arrivals []string, opts Options) Result {
	c, verdict, ok := ParseCandidate(from, to)
	if !ok {
		return verdict
	}

	days := make([]time.Time, 0, len(arrivals))
	for _, a := range arrivals {
		d, err := ParseDay(strings.TrimSpace(a))
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return Validate(c, days, opts)
}

// ParseCandidate turns YYYY-MM-DD strings into a Candidate, reporting
// unparsable days with the same reasons Validate uses.
func ParseCandidate(from, to string) (Candidate, Result, bool) {
	var c Candidate
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return c, reject(ReasonArrivalRequired), false
	}
	f, err := ParseDay(from)
	if err != nil {
		return c, reject(ReasonArrivalInvalid), false
	}
	c.From = f
	if to != "" {
		t, err := ParseDay(to)
		if err != nil {
			return c, reject(ReasonDepartureInvalid), false
		}
		c.To = t
	}
	return c, Result{Valid: true}, true
}
