package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all environment-sourced settings for the relay.
type Config struct {
	// GatewayURL is the websocket endpoint of the chat gateway.
	GatewayURL string

	// Subscription identifies this relay's queue/subscription at the gateway.
	Subscription string

	// CredentialsPath points to a file containing the gateway bearer token.
	CredentialsPath string

	// Model is the claude model identifier. Empty uses the CLI default.
	Model string

	// Workspace is the directory holding persisted state and documents.
	Workspace string

	// InvokeTimeout is the hard wall-clock limit per AI invocation.
	InvokeTimeout time.Duration

	// Heartbeat is nil when the feature is disabled.
	Heartbeat *HeartbeatConfig

	LogDir   string
	LogLevel string
}

// HeartbeatConfig configures the periodic checklist review.
type HeartbeatConfig struct {
	// ChatID is the conversation that receives heartbeat results.
	ChatID string

	// Interval between ticks.
	Interval time.Duration

	// StartHour and EndHour bound the active window: start <= hour < end.
	StartHour int
	EndHour   int

	// Location is the timezone the window is evaluated in.
	Location *time.Location
}

// Load reads configuration from the environment via the given viper instance.
// A nil instance gets a fresh one. Missing or malformed required values are
// returned as errors; callers treat them as fatal.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("CLAW")
	v.AutomaticEnv()

	v.SetDefault("invoke_timeout", "5m")
	v.SetDefault("heartbeat_interval", "30m")
	v.SetDefault("heartbeat_hours", "8-22")
	v.SetDefault("heartbeat_tz", "UTC")
	v.SetDefault("log_level", "info")

	cfg := &Config{
		GatewayURL:      v.GetString("gateway_url"),
		Subscription:    v.GetString("subscription"),
		CredentialsPath: v.GetString("credentials"),
		Model:           v.GetString("model"),
		Workspace:       v.GetString("workspace"),
		LogDir:          v.GetString("log_dir"),
		LogLevel:        v.GetString("log_level"),
	}

	for _, req := range []struct{ key, val string }{
		{"CLAW_GATEWAY_URL", cfg.GatewayURL},
		{"CLAW_SUBSCRIPTION", cfg.Subscription},
		{"CLAW_CREDENTIALS", cfg.CredentialsPath},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", req.key)
		}
	}

	if cfg.Workspace == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Workspace = filepath.Join(home, ".claw")
	}

	timeout, err := time.ParseDuration(v.GetString("invoke_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLAW_INVOKE_TIMEOUT: %w", err)
	}
	cfg.InvokeTimeout = timeout

	hb, err := loadHeartbeat(v)
	if err != nil {
		return nil, err
	}
	cfg.Heartbeat = hb

	return cfg, nil
}

// loadHeartbeat returns nil when CLAW_HEARTBEAT_CHAT is unset: an absent
// target fully disables the feature, with no partial state.
func loadHeartbeat(v *viper.Viper) (*HeartbeatConfig, error) {
	chatID := v.GetString("heartbeat_chat")
	if chatID == "" {
		return nil, nil
	}

	interval, err := time.ParseDuration(v.GetString("heartbeat_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLAW_HEARTBEAT_INTERVAL: %w", err)
	}

	start, end, err := ParseHourWindow(v.GetString("heartbeat_hours"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLAW_HEARTBEAT_HOURS: %w", err)
	}

	loc, err := time.LoadLocation(v.GetString("heartbeat_tz"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLAW_HEARTBEAT_TZ: %w", err)
	}

	return &HeartbeatConfig{
		ChatID:    chatID,
		Interval:  interval,
		StartHour: start,
		EndHour:   end,
		Location:  loc,
	}, nil
}

// ParseHourWindow parses a "start-end" active-hour window. Start is
// inclusive, end exclusive.
func ParseHourWindow(s string) (start, end int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected start-end, got %q", s)
	}
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad start hour %q", parts[0])
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad end hour %q", parts[1])
	}
	if start < 0 || start > 23 || end < 1 || end > 24 || start >= end {
		return 0, 0, fmt.Errorf("hour window %d-%d out of range", start, end)
	}
	return start, end, nil
}

// ReadCredential reads and trims the gateway token from CredentialsPath.
func (c *Config) ReadCredential() (string, error) {
	data, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("credentials file %s is empty", c.CredentialsPath)
	}
	return token, nil
}
