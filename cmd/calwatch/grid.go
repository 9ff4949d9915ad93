package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"staybook/availability"
	"staybook/calclient"
	"staybook/models"
)

var sourceTags = map[models.Source]string{
	models.SourceDirect:      "D",
	models.SourceChannelA:    "A",
	models.SourceChannelB:    "B",
	models.SourceAdminManual: "M",
	models.SourceBlocked:     "X",
}

func tag(r *models.Reservation) string {
	if r == nil {
		return "?"
	}
	if t, ok := sourceTags[r.Source]; ok {
		return t
	}
	return "?"
}

// cell draws one day: [ marks an arrival, ] a departure, = a night in the
// middle of a stay. Split days show the departing and arriving stays as A|B.
func cell(d availability.DayState) string {
	day := d.Date
	if len(day) >= 2 {
		day = day[len(day)-2:]
	}
	var mark string
	switch d.Kind {
	case availability.KindSplit:
		mark = tag(d.Left) + "|" + tag(d.Right)
	case availability.KindCheckInHalf:
		mark = "[" + tag(d.Reservation)
	case availability.KindCheckOutHalf:
		mark = tag(d.Reservation) + "]"
	case availability.KindMiddle:
		mark = "=" + tag(d.Reservation)
	case availability.KindSingle:
		mark = "*" + tag(d.Reservation)
	}
	if d.Conflict {
		mark += "!"
	}
	return strings.TrimSpace(day + " " + mark)
}

// renderMonth prints the month as a Monday-first grid.
func renderMonth(w io.Writer, m calclient.Month) error {
	tw := tabwriter.NewWriter(w, 2, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "%s %d\n", time.Month(m.Month), m.Year)
	fmt.Fprintln(tw, "MON\tTUE\tWED\tTHU\tFRI\tSAT\tSUN")

	if len(m.Days) == 0 {
		return tw.Flush()
	}
	first, err := time.Parse(models.DayLayout, m.Days[0].Date)
	if err != nil {
		return fmt.Errorf("bad day %q: %w", m.Days[0].Date, err)
	}
	lead := (int(first.Weekday()) + 6) % 7

	row := make([]string, 0, 7)
	for i := 0; i < lead; i++ {
		row = append(row, "")
	}
	for _, d := range m.Days {
		row = append(row, cell(d))
		if len(row) == 7 {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
			row = row[:0]
		}
	}
	if len(row) > 0 {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t.Year(), t.Month(), nil
}
