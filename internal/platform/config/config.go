package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Retention caps and the live
// cache TTL are deliberately compile-time constants in the store packages,
// not tunables here.
type Server struct {
	Addr     string
	Redis    Redis
	Postgres Postgres
	Archive  Archive
}

// Redis holds connection settings for the live location cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres holds connection settings for the durable history store.
type Postgres struct {
	URL string
}

// Archive configures the nightly archival sweep. Worker marks the single
// designated process that runs the schedule; the job lock additionally
// serializes runs if more than one process is flagged by mistake.
type Archive struct {
	Worker   bool
	Schedule string
	Timezone string
	LockTTL  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("RUMBO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	schedule := os.Getenv("ARCHIVE_SCHEDULE")
	if schedule == "" {
		// Daily at 03:00 in the configured time zone.
		schedule = "0 3 * * *"
	}
	tz := os.Getenv("ARCHIVE_TIMEZONE")
	if tz == "" {
		tz = "America/Bogota"
	}

	return Server{
		Addr: addr,
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Archive: Archive{
			Worker:   os.Getenv("ARCHIVE_WORKER") == "true",
			Schedule: schedule,
			Timezone: tz,
			LockTTL:  30 * time.Minute,
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
