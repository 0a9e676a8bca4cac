package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"vidsync/internal/rooms"
	"vidsync/internal/transport"
)

const (
	EngineHertz = "hertz"
	EngineEcho  = "echo"
)

type Config struct {
	Port             string
	Engine           string
	ChatHistoryLimit int
	StaleAfter       time.Duration
	MaxFrameBytes    int64
	PongWait         time.Duration
	ShutdownTimeout  time.Duration
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func (c Config) RoomOptions() rooms.Options {
	return rooms.Options{
		ChatLimit:  c.ChatHistoryLimit,
		StaleAfter: c.StaleAfter,
	}
}

func (c Config) TransportOptions() transport.Options {
	return transport.Options{
		PongWait:     c.PongWait,
		MaxFrameSize: c.MaxFrameBytes,
	}
}

// Load reads the optional env files (".env" when none are named) and then
// the process environment. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:   getString("PORT", "3000"),
		Engine: getString("HTTP_ENGINE", EngineHertz),
	}
	if cfg.Engine != EngineHertz && cfg.Engine != EngineEcho {
		return Config{}, fmt.Errorf("HTTP_ENGINE: unsupported engine %q", cfg.Engine)
	}

	var err error
	if cfg.ChatHistoryLimit, err = getInt("CHAT_HISTORY_LIMIT", rooms.DefaultChatLimit); err != nil {
		return Config{}, err
	}
	if cfg.ChatHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_LIMIT: must be positive, got %d", cfg.ChatHistoryLimit)
	}
	frameBytes, err := getInt("MAX_FRAME_BYTES", transport.DefaultMaxFrameSize)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxFrameBytes = int64(frameBytes)
	if cfg.StaleAfter, err = getDuration("PLAYBACK_STALE_AFTER", rooms.DefaultStaleAfter); err != nil {
		return Config{}, err
	}
	// A negative threshold disables the staleness check; zero is ambiguous.
	if cfg.StaleAfter == 0 {
		return Config{}, errors.New("PLAYBACK_STALE_AFTER: must be non-zero (use a negative value to disable)")
	}
	if cfg.PongWait, err = getDuration("PONG_WAIT", transport.DefaultPongWait); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
