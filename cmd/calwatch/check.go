package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"staybook/availability"
)

func checkCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a stay can be booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return check(context.Background(), os.Stdout, from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Arrival day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Departure day (YYYY-MM-DD)")
	return cmd
}

// check runs the arrival-only rules locally first, the way the booking
// widget does, then asks the server for the full verdict.
func check(ctx context.Context, w io.Writer, from, to string) error {
	arr, err := client.Arrivals(ctx)
	if err != nil {
		return err
	}
	local := availability.ValidateDays(from, to, arr.Arrivals, availability.Options{MaxStayDays: arr.MaxStayDays})
	fmt.Fprintln(w, "local: ", verdict(local))
	if !local.Valid {
		return nil
	}

	remote, err := client.Validate(ctx, from, to)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "server:", verdict(remote))
	return nil
}

func verdict(r availability.Result) string {
	if r.Valid {
		return "available"
	}
	return "rejected: " + r.Reason
}
