package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates runtime settings for the realtime dispatcher, loaded from
// environment variables so the process can be configured the same way as the
// web tier it serves.
type Config struct {
	HTTPPort        string
	TriggerToken    string
	IdentifySecret  string
	IdentifyTTL     time.Duration
	AllowedOrigin   string
	MaintenanceFlag string
	SendBuffer      int
}

// Load builds a Config from the environment. Every knob has a default that
// works for local development; TRIGGER_TOKEN and IDENTIFY_SECRET are empty by
// default, which disables the respective checks.
func Load() Config {
	identifyTTL := 24 * time.Hour
	if raw := os.Getenv("IDENTIFY_TTL_HOURS"); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			identifyTTL = time.Duration(hours) * time.Hour
		}
	}

	sendBuffer := 32
	if raw := os.Getenv("SEND_BUFFER"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			sendBuffer = n
		}
	}

	return Config{
		HTTPPort:        firstNonEmpty(os.Getenv("PORT"), "4000"),
		TriggerToken:    os.Getenv("TRIGGER_TOKEN"),
		IdentifySecret:  os.Getenv("IDENTIFY_SECRET"),
		IdentifyTTL:     identifyTTL,
		AllowedOrigin:   os.Getenv("ALLOWED_ORIGIN"),
		MaintenanceFlag: firstNonEmpty(os.Getenv("MAINTENANCE_FLAG"), "maintenance.flag"),
		SendBuffer:      sendBuffer,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
