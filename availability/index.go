package availability

import (
	"fmt"
	"log"
	"sort"
	"time"

	"staybook/models"
)

// maxIndexedNights guards the per-day projection against absurd spans coming
// from external channels.
const maxIndexedNights = 3660

type stay struct {
	res        models.Reservation
	start, end int64
}

// Index is a query-only projection of one reservation snapshot keyed by day
// ordinal. It is never patched: build a new one whenever the list changes.
type Index struct {
	stays  []stay
	starts map[int64][]int
	ends   map[int64][]int
	nights map[int64][]int
}

// Build projects the active reservations of a snapshot. Cancelled and
// malformed reservations are left out.
func Build(reservations []models.Reservation) *Index {
	ix := &Index{
		starts: make(map[int64][]int),
		ends:   make(map[int64][]int),
		nights: make(map[int64][]int),
	}

	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		s, err := r.Start()
		if err != nil {
			log.Printf("[availability] skipping reservation %s: bad start %q", r.ID, r.StartDate)
			continue
		}
		e, err := r.End()
		if err != nil {
			log.Printf("[availability] skipping reservation %s: bad end %q", r.ID, r.EndDate)
			continue
		}
		st := stay{res: r, start: Ordinal(s), end: Ordinal(e)}
		if st.end < st.start || st.end-st.start > maxIndexedNights {
			log.Printf("[availability] skipping reservation %s: span %s..%s", r.ID, r.StartDate, r.EndDate)
			continue
		}
		ix.stays = append(ix.stays, st)
	}

	sort.SliceStable(ix.stays, func(i, j int) bool {
		if ix.stays[i].start != ix.stays[j].start {
			return ix.stays[i].start < ix.stays[j].start
		}
		return ix.stays[i].res.ID < ix.stays[j].res.ID
	})

	for i, st := range ix.stays {
		ix.starts[st.start] = append(ix.starts[st.start], i)
		ix.ends[st.end] = append(ix.ends[st.end], i)
		for d := st.start; d < st.end; d++ {
			ix.nights[d] = append(ix.nights[d], i)
		}
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.stays)
}

// Reservations returns the indexed reservations ordered by arrival.
func (ix *Index) Reservations() []models.Reservation {
	out := make([]models.Reservation, len(ix.stays))
	for i, st := range ix.stays {
		out[i] = st.res
	}
	return out
}

// Arrivals lists every arrival day once, ascending.
func (ix *Index) Arrivals() []time.Time {
	ords := make([]int64, 0, len(ix.starts))
	for ord := range ix.starts {
		ords = append(ords, ord)
	}
	sort.Slice(ords, func(i, j int) bool { return ords[i] < ords[j] })

	days := make([]time.Time, len(ords))
	for i, ord := range ords {
		days[i] = FromOrdinal(ord)
	}
	return days
}

// ReservedArrivals returns a fresh copy of the reserved-arrivals set.
func (ix *Index) ReservedArrivals() map[int64]struct{} {
	set := make(map[int64]struct{}, len(ix.starts))
	for ord := range ix.starts {
		set[ord] = struct{}{}
	}
	return set
}

// OccupiedBy returns the reservations sleeping on the night of day.
func (ix *Index) OccupiedBy(day time.Time) []models.Reservation {
	return ix.collect(ix.nights[Ordinal(day)])
}

func (ix *Index) IsOccupied(day time.Time) bool {
	return len(ix.nights[Ordinal(day)]) > 0
}

func (ix *Index) collect(idx []int) []models.Reservation {
	if len(idx) == 0 {
		return nil
	}
	out := make([]models.Reservation, len(idx))
	for i, n := range idx {
		out[i] = ix.stays[n].res
	}
	return out
}

// CheckStay runs Validate against this snapshot's arrivals and, when
// opts.Strict is set, RuleNoOccupiedNights on top of it.
func (ix *Index) CheckStay(c Candidate, opts Options) (res Result) {
	res = Validate(c, ix.Arrivals(), opts)
	if !res.Valid || !opts.Strict {
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = reject(fmt.Sprintf("Unexpected validation error – %v", r))
		}
	}()
	return ix.RuleNoOccupiedNights(c, opts)
}

// RuleNoOccupiedNights rejects a stay that sleeps on any night another
// reservation already occupies, including arrivals in the middle of someone
// else's stay that Validate alone lets through. Checkout nights are free, so
// turnover days still pass.
func (ix *Index) RuleNoOccupiedNights(c Candidate, opts Options) Result {
	from, to, verdict, ok := normalize(c, opts)
	if !ok {
		return verdict
	}
	// a zero-night stay still claims its day
	last := to
	if last == from {
		last++
	}
	for ord := from; ord < last; ord++ {
		if len(ix.nights[ord]) > 0 {
			return reject(ReasonNightsOccupied)
		}
	}
	return Result{Valid: true}
}
