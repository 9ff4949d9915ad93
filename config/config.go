package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// HTTP
	Port string `envconfig:"PORT" default:":8080"`
	// Mongo
	MongoURI string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB  string `envconfig:"MONGO_DB" default:"staybook"`
	// Redis; an empty address runs single-instance without locks or relay
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	// JWT
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Rate limiting
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"3"`
	// Booking rules
	MaxStayDays     int           `envconfig:"MAX_STAY_DAYS" default:"15"`
	StrictOccupancy bool          `envconfig:"STRICT_OCCUPANCY" default:"true"`
	LockTTL         time.Duration `envconfig:"LOCK_TTL" default:"5s"`
}

// Client carries the live-channel knobs for watchers.
type Client struct {
	ReconnectInterval    time.Duration `envconfig:"WS_RECONNECT_INTERVAL" default:"3s"`
	MaxReconnectAttempts int           `envconfig:"WS_MAX_RECONNECT_ATTEMPTS" default:"5"`
	HeartbeatInterval    time.Duration `envconfig:"WS_HEARTBEAT_INTERVAL" default:"30s"`
	FallbackInterval     time.Duration `envconfig:"FALLBACK_INTERVAL" default:"30s"`
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
}

func Load() (App, error) {
	loadDotenv()
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.Port != "" && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	return c, nil
}

func LoadClient() (Client, error) {
	loadDotenv()
	var c Client
	err := envconfig.Process("", &c)
	return c, err
}
