package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadSettings.
const (
	EnvTable       = "RPMCLK_TABLE"
	EnvDB          = "RPMCLK_DB"
	EnvMonitorPort = "RPMCLK_MONITOR_PORT"
	EnvTransport   = "RPMCLK_TRANSPORT"
)

// TransportSim selects the in-memory RPM.
const TransportSim = "sim"

// Settings configures the rpmctl tool.
type Settings struct {
	// TablePath is the clock table file. Empty selects the built-in table.
	TablePath string

	// DBPath is the vote database, without extension. Empty disables
	// recording.
	DBPath string

	MonitorPort int

	// Transport is TransportSim or the path of an rpmsg device.
	Transport string
}

// LoadSettings reads the settings from the given .env files, then lets the
// process environment override them. Missing files are skipped.
func LoadSettings(files ...string) (Settings, error) {
	env := make(map[string]string)

	for _, f := range files {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Settings{}, fmt.Errorf("reading %s: %w", f, err)
		}

		for k, v := range values {
			env[k] = v
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return env[key]
	}

	s := Settings{
		TablePath: lookup(EnvTable),
		DBPath:    lookup(EnvDB),
		Transport: lookup(EnvTransport),
	}

	if s.Transport == "" {
		s.Transport = TransportSim
	}

	if port := lookup(EnvMonitorPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvMonitorPort, err)
		}
		s.MonitorPort = n
	}

	return s, nil
}
