package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// DatabasePath is the SQLite database file path.
	DatabasePath string

	// IngestURL is the content-event stream WebSocket endpoint. Empty
	// disables the ingest subscriber.
	IngestURL string

	// ShuffleSeed seeds the feed distribution's randomization pass. Zero
	// means time-seeded; set it for reproducible feeds in staging.
	ShuffleSeed int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "courtside.db"
	}

	var seed int64
	if s := os.Getenv("SHUFFLE_SEED"); s != "" {
		var err error
		seed, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUFFLE_SEED: %w", err)
		}
	}

	return &Config{
		Port:         port,
		DatabasePath: dbPath,
		IngestURL:    os.Getenv("INGEST_URL"),
		ShuffleSeed:  seed,
	}, nil
}
