package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"staybook/calclient"
	"staybook/config"
	"staybook/models"
	"staybook/realtime"
	"staybook/refresh"
)

func watchCmd() *cobra.Command {
	var (
		month string
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the month calendar and redraw it on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, mon, err := parseMonth(month)
			if err != nil {
				return err
			}
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			liveURL, err := client.LiveURL(admin)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cfg, liveURL, year, mon, admin)
		},
	}

	cmd.Flags().StringVar(&month, "month", time.Now().Format("2006-01"), "Month to show (YYYY-MM)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Follow the staff feed (needs --token)")
	return cmd
}

func watch(ctx context.Context, cfg config.Client, liveURL string, year int, month time.Month, admin bool) error {
	cache := refresh.NewCache()
	cache.Register(refresh.ViewCalendar, func(ctx context.Context) (any, error) {
		return client.Calendar(ctx, year, month)
	})
	if admin {
		cache.Register(refresh.ViewBookings, func(ctx context.Context) (any, error) {
			return client.Reservations(ctx)
		})
	}

	redraw := make(chan refresh.View, 8)
	cache.OnStale(func(v refresh.View) {
		select {
		case redraw <- v:
		default:
		}
	})

	mcfg := realtime.DefaultConfig(liveURL)
	mcfg.ReconnectInterval = cfg.ReconnectInterval
	mcfg.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	mcfg.HeartbeatInterval = cfg.HeartbeatInterval
	mgr := realtime.New(mcfg, nil)
	mgr.OnStateChange(func(s realtime.State) {
		if s == realtime.StateError {
			fmt.Println("-- live updates unavailable; polling every", cfg.FallbackInterval)
			return
		}
		fmt.Println("--", s)
	})

	router := refresh.NewRouter(cache, nil)
	detach := router.Attach(mgr)
	defer detach()

	poller := refresh.NewPoller(cfg.FallbackInterval, router.InvalidateAll)
	defer poller.Close()
	poller.Watch(mgr)

	mgr.Connect()
	defer mgr.Disconnect()

	initial := []refresh.View{refresh.ViewCalendar}
	if admin {
		initial = append(initial, refresh.ViewBookings)
	}
	for _, v := range initial {
		if err := show(ctx, cache, v); err != nil {
			log.Printf("[calwatch] %v", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-redraw:
			if err := show(ctx, cache, v); err != nil {
				log.Printf("[calwatch] %v", err)
			}
		}
	}
}

func show(ctx context.Context, cache *refresh.Cache, v refresh.View) error {
	if !cache.Stale(v) {
		return nil
	}
	data, err := cache.Get(ctx, v)
	if err != nil {
		return err
	}
	switch d := data.(type) {
	case calclient.Month:
		fmt.Println()
		return renderMonth(os.Stdout, d)
	case []models.Reservation:
		fmt.Println("-- active reservations:", len(d))
	}
	return nil
}
