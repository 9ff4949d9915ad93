package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"staybook/availability"
	"staybook/booking"
	"staybook/config"
	"staybook/db"
	"staybook/middleware"
	"staybook/mq"
	"staybook/ratelim"
	"staybook/rdx"
	"staybook/routes"
	"staybook/websock"
)

const calendarLockKey = "lock:calendar"

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// calendar data must never be served stale from a cache
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

func setupRouter(svc *booking.Service, hub *websock.Hub, auth *middleware.Auth, rateLimiter *ratelim.RateLimiter) *httprouter.Router {
	router := httprouter.New()
	routes.AddHealthRoutes(router, hub)
	routes.AddBookingRoutes(router, booking.NewHandlers(svc), auth, rateLimiter)
	routes.AddLiveRoutes(router, hub, auth)
	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	hub := websock.NewHub()
	go hub.Run()

	// redis gives cross-instance locking and fan-out; without it the
	// server runs as a single instance
	relayCtx, stopRelay := context.WithCancel(context.Background())
	var (
		rdb    *redis.Client
		locker booking.Locker
		pub    booking.Publisher = mq.LocalPublisher{Sink: hub}
	)
	if cfg.RedisAddr != "" {
		rdb, err = rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		locker = rdx.NewLocker(rdb, calendarLockKey, cfg.LockTTL)
		pub = mq.NewEmitter(rdb)
		go func() {
			if err := mq.StartRelay(relayCtx, rdb, hub); err != nil {
				log.Printf("[Relay] %v", err)
			}
		}()
	} else {
		log.Println("REDIS_ADDR empty; using in-process lock and fan-out")
	}
	cancelStart()

	svc := booking.NewService(db.NewReservationRepo(store.Reservations), locker, pub, availability.Options{
		MaxStayDays: cfg.MaxStayDays,
		Strict:      cfg.StrictOccupancy,
	})
	auth := middleware.NewAuth(cfg.JWTSecret)
	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	router := setupRouter(svc, hub, auth, rateLimiter)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// hijacked websocket connections are not tracked by Shutdown
	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down live hub...")
		stopRelay()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		log.Printf("mongo disconnect: %v", err)
	}
	if rdb != nil {
		rdb.Close()
	}

	log.Println("✅ Server stopped cleanly")
}
