package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/knadh/koanf/v2"
)

var Global = koanf.New(".")

// Load populates Global with the relay configuration: built-in defaults
// first, then an optional .env file, then the process environment. The
// defaults reproduce the stock deployment, so the binary runs with no
// configuration at all.
func Load() error {
	Global.Load(confmap.Provider(map[string]interface{}{
		GRPC_ENDPOINT: "https://fr.grpc.gadflynode.com:25565",
		GRPC_TOKEN:    "",
		PROGRAM_ID:    "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		TCP_ADDR:      "0.0.0.0:8725",
		METRICS_ADDR:  "",
		LOG_LEVEL:     "info",
	}, "."), nil)

	// .env file is optional, but we still try to load it if it exists.
	if err := Global.Load(file.Provider(".env"), dotenv.Parser()); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}

	if err := Global.Load(env.Provider("", "", nil), nil); err != nil {
		slog.Warn("failed to load environment variables", slog.Any("error", err))
	}

	return validate()
}

// validate rejects configurations the relay cannot start with.
func validate() error {
	endpoint := Global.String(GRPC_ENDPOINT)
	if endpoint == "" {
		return fmt.Errorf("%s must not be empty", GRPC_ENDPOINT)
	}
	if !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("%s must be an https url, got %q", GRPC_ENDPOINT, endpoint)
	}

	if Global.String(PROGRAM_ID) == "" {
		return fmt.Errorf("%s must not be empty", PROGRAM_ID)
	}
	if Global.String(TCP_ADDR) == "" {
		return fmt.Errorf("%s must not be empty", TCP_ADDR)
	}
	return nil
}

// LogLevel parses the configured verbosity into a slog level, defaulting
// to info on unknown values.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(Global.String(LOG_LEVEL))); err != nil {
		return slog.LevelInfo
	}
	return level
}
