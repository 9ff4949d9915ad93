package availability

import (
	"sort"
	"time"

	"staybook/models"
)

// Kind is how a calendar cell is drawn for one day.
type Kind string

const (
	KindNone         Kind = "none"
	KindSingle       Kind = "single"
	KindCheckInHalf  Kind = "checkin-half"
	KindCheckOutHalf Kind = "checkout-half"
	KindMiddle       Kind = "middle"
	KindSplit        Kind = "split"
)

// DayState is the data contract behind one calendar cell. Split cells carry
// the departing reservation in Left and the arriving one in Right; all other
// kinds carry the single occupant in Reservation.
type DayState struct {
	Date        string               `json:"date"`
	Kind        Kind                 `json:"kind"`
	Reservation *models.Reservation  `json:"reservation,omitempty"`
	Left        *models.Reservation  `json:"left,omitempty"`
	Right       *models.Reservation  `json:"right,omitempty"`
	Touching    []models.Reservation `json:"touching,omitempty"`
	Conflict    bool                 `json:"conflict,omitempty"`
}

// Classify builds a throwaway index over reservations and classifies day.
func Classify(reservations []models.Reservation, day time.Time) DayState {
	return Build(reservations).Day(day)
}

// Day classifies one calendar day. A reservation touches a day from its
// arrival through its checkout day inclusive.
func (ix *Index) Day(day time.Time) DayState {
	d := Ordinal(day)
	state := DayState{Date: FromOrdinal(d).Format(models.DayLayout), Kind: KindNone}

	touching := ix.touching(d)
	if len(touching) == 0 {
		return state
	}
	state.Touching = ix.collect(touching)
	state.Conflict = len(ix.nights[d]) > 1

	if out, in, ok := ix.turnoverPair(d); ok {
		left, right := ix.stays[out].res, ix.stays[in].res
		state.Kind = KindSplit
		state.Left = &left
		state.Right = &right
		return state
	}

	// several stays touching without a turnover pair means overlapping data;
	// draw the earliest arrival and flag the cell.
	primary := ix.stays[touching[0]]
	res := primary.res
	state.Reservation = &res
	switch {
	case primary.start == d && primary.end == d:
		state.Kind = KindSingle
	case primary.start == d:
		state.Kind = KindCheckInHalf
	case primary.end == d:
		state.Kind = KindCheckOutHalf
	default:
		state.Kind = KindMiddle
	}
	if len(touching) > 1 {
		state.Conflict = true
	}
	return state
}

// touching returns stay indices occupying night d or checking out on d, in
// arrival order and without duplicates.
func (ix *Index) touching(d int64) []int {
	seen := make(map[int]bool)
	var out []int
	for _, group := range [][]int{ix.nights[d], ix.ends[d], ix.starts[d]} {
		for _, i := range group {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	// stays are stored in arrival order, so sorting indices sorts by arrival
	sort.Ints(out)
	return out
}

func (ix *Index) turnoverPair(d int64) (out, in int, ok bool) {
	for _, o := range ix.ends[d] {
		for _, i := range ix.starts[d] {
			if ix.stays[o].res.ID != ix.stays[i].res.ID {
				return o, i, true
			}
		}
	}
	return 0, 0, false
}

// Month classifies every day of a calendar month.
func (ix *Index) Month(year int, month time.Month) []DayState {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var days []DayState
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, ix.Day(d))
	}
	return days
}
