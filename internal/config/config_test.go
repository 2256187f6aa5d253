package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func testViper(t *testing.T, env map[string]string) *viper.Viper {
	t.Helper()
	v := viper.New()
	for key, val := range env {
		t.Setenv(key, val)
	}
	return v
}

func requiredEnv(t *testing.T) map[string]string {
	t.Helper()
	credPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(credPath, []byte("secret-token\n"), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return map[string]string{
		"CLAW_GATEWAY_URL":  "wss://gateway.example/ws",
		"CLAW_SUBSCRIPTION": "claw-main",
		"CLAW_CREDENTIALS":  credPath,
	}
}

func TestLoadRequiredMissing(t *testing.T) {
	env := requiredEnv(t)
	delete(env, "CLAW_SUBSCRIPTION")
	t.Setenv("CLAW_SUBSCRIPTION", "")
	v := testViper(t, env)

	if _, err := Load(v); err == nil {
		t.Fatalf("expected error for missing CLAW_SUBSCRIPTION")
	}
}

func TestLoadDefaults(t *testing.T) {
	v := testViper(t, requiredEnv(t))

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InvokeTimeout != 5*time.Minute {
		t.Fatalf("expected default timeout 5m, got %v", cfg.InvokeTimeout)
	}
	if cfg.Heartbeat != nil {
		t.Fatalf("expected heartbeat disabled without CLAW_HEARTBEAT_CHAT")
	}
	if cfg.Workspace == "" {
		t.Fatalf("expected default workspace path")
	}
}

func TestLoadHeartbeat(t *testing.T) {
	env := requiredEnv(t)
	env["CLAW_HEARTBEAT_CHAT"] = "space-42"
	env["CLAW_HEARTBEAT_INTERVAL"] = "15m"
	env["CLAW_HEARTBEAT_HOURS"] = "9-18"
	env["CLAW_HEARTBEAT_TZ"] = "America/New_York"
	v := testViper(t, env)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	hb := cfg.Heartbeat
	if hb == nil {
		t.Fatalf("expected heartbeat config")
	}
	if hb.ChatID != "space-42" || hb.Interval != 15*time.Minute {
		t.Fatalf("unexpected heartbeat config: %+v", hb)
	}
	if hb.StartHour != 9 || hb.EndHour != 18 {
		t.Fatalf("expected window 9-18, got %d-%d", hb.StartHour, hb.EndHour)
	}
	if hb.Location.String() != "America/New_York" {
		t.Fatalf("unexpected location %v", hb.Location)
	}
}

func TestLoadBadHeartbeatWindow(t *testing.T) {
	env := requiredEnv(t)
	env["CLAW_HEARTBEAT_CHAT"] = "space-42"
	env["CLAW_HEARTBEAT_HOURS"] = "22-8"
	v := testViper(t, env)

	if _, err := Load(v); err == nil {
		t.Fatalf("expected error for inverted hour window")
	}
}

func TestParseHourWindow(t *testing.T) {
	cases := []struct {
		in         string
		start, end int
		ok         bool
	}{
		{"8-22", 8, 22, true},
		{"0-24", 0, 24, true},
		{" 9 - 17 ", 9, 17, true},
		{"8", 0, 0, false},
		{"12-12", 0, 0, false},
		{"-1-5", 0, 0, false},
		{"a-b", 0, 0, false},
	}
	for _, tc := range cases {
		start, end, err := ParseHourWindow(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
		if tc.ok && (start != tc.start || end != tc.end) {
			t.Fatalf("%q: got %d-%d, want %d-%d", tc.in, start, end, tc.start, tc.end)
		}
	}
}

func TestReadCredential(t *testing.T) {
	env := requiredEnv(t)
	v := testViper(t, env)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	token, err := cfg.ReadCredential()
	if err != nil {
		t.Fatalf("read credential: %v", err)
	}
	if token != "secret-token" {
		t.Fatalf("expected trimmed token, got %q", token)
	}
}
