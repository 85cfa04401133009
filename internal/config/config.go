package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses the scan and sync tunable durations

	"github.com/joho/godotenv" // godotenv loads an optional .env file for local development
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The scan and sync tunables carry defaults that
// match the station's reference behavior, so a minimal environment only
// needs the required identifiers and secrets.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // remote document store database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to sign volunteer session JWTs

	AccessTTLMin int // access token time-to-live in minutes
	BcryptCost   int // bcrypt cost for device PIN hashing

	EventTimezone string // IANA zone used for calendar-day boundaries
	EventID       string // optional event this station is bound to
	EventType     string // optional registration type this station admits
	FramePipe     string // named pipe the camera process writes decoded frames to

	SamplePeriod       time.Duration // camera sampling period
	CooldownWindow     time.Duration // duplicate-scan suppression window
	ResultDisplay      time.Duration // result display and same-code guard interval
	HistoryCap         int           // bounded scan history size
	SyncInterval       time.Duration // timer-driven sync pass period
	ProbeInterval      time.Duration // connectivity probe period
	SyncItemDelay      time.Duration // pause between queue items during a pass
	SyncRetrySoftLimit int           // retries before an item waits for a forced pass
}

// Load reads configuration values from environment variables and returns a
// Config. An optional .env file is loaded first. Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine; deployments use the environment directly

	return Config{
		Env:       must("APP_ENV"),      // environment (dev/test/prod)
		Port:      must("APP_PORT"),     // port to bind the HTTP server
		DBUser:    must("DB_USER"),      // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    must("DB_HOST"),      // database host
		DBPort:    must("DB_PORT"),      // database port
		DBName:    must("DB_NAME"),      // database name
		JWTSecret: must("JWT_SECRET"),   // secret used for signing JWTs

		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"), // TTL for access tokens in minutes
		BcryptCost:   mustInt("BCRYPT_COST"),          // bcrypt cost factor

		EventTimezone: envStr("EVENT_TIMEZONE", "Asia/Kolkata"),
		EventID:       os.Getenv("STATION_EVENT_ID"),
		EventType:     os.Getenv("STATION_EVENT_TYPE"),
		FramePipe:     envStr("FRAME_PIPE", "/var/run/scan-gate/frames"),

		SamplePeriod:       envDur("SCAN_SAMPLE_PERIOD", 200*time.Millisecond),
		CooldownWindow:     envDur("SCAN_COOLDOWN_WINDOW", 5*time.Second),
		ResultDisplay:      envDur("SCAN_RESULT_DISPLAY", 2*time.Second),
		HistoryCap:         envInt("SCAN_HISTORY_CAP", 50),
		SyncInterval:       envDur("SYNC_INTERVAL", 30*time.Second),
		ProbeInterval:      envDur("SYNC_PROBE_INTERVAL", 5*time.Second),
		SyncItemDelay:      envDur("SYNC_ITEM_DELAY", 300*time.Millisecond),
		SyncRetrySoftLimit: envInt("SYNC_RETRY_SOFT_LIMIT", 10),
	}
}

// Timezone resolves the configured event time zone. An unknown zone name
// falls back to UTC with a logged warning so the station still starts.
func (c Config) Timezone() *time.Location {
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		log.Printf("config: unknown EVENT_TIMEZONE %q, using UTC", c.EventTimezone)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
