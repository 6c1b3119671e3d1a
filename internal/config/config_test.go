package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Transcriber.Model != "whisper-1" {
		t.Fatalf("expected default model, got %q", cfg.Transcriber.Model)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXKEY_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VOXKEY_BUS_EMBEDDED", "false")
	t.Setenv("VOXKEY_STORE_PATH", "./tmp-state.db")
	t.Setenv("VOXKEY_CAPTURE_SAMPLE_RATE", "48000")
	t.Setenv("VOXKEY_TRANSCRIBER_ENDPOINT", "https://stt.example.com/v1/transcribe")
	t.Setenv("VOXKEY_TRANSCRIBER_REQUEST_TIMEOUT_MS", "15000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Embedded {
		t.Fatal("expected embedded override false")
	}
	if cfg.Store.Path != "./tmp-state.db" {
		t.Fatalf("expected store path override, got %q", cfg.Store.Path)
	}
	if cfg.Capture.SampleRate != 48000 {
		t.Fatalf("expected sample rate override, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Transcriber.Endpoint != "https://stt.example.com/v1/transcribe" {
		t.Fatalf("expected endpoint override, got %q", cfg.Transcriber.Endpoint)
	}
	if cfg.Transcriber.RequestTimeoutMS != 15000 {
		t.Fatalf("expected timeout override, got %d", cfg.Transcriber.RequestTimeoutMS)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"zero http port", func(c *Config) { c.HTTP.Port = 0 }},
		{"empty capture command", func(c *Config) { c.Capture.Command = "" }},
		{"zero sample rate", func(c *Config) { c.Capture.SampleRate = 0 }},
		{"empty endpoint", func(c *Config) { c.Transcriber.Endpoint = "" }},
		{"empty model", func(c *Config) { c.Transcriber.Model = "" }},
		{"zero request timeout", func(c *Config) { c.Transcriber.RequestTimeoutMS = 0 }},
		{"no servers external bus", func(c *Config) { c.Bus.Embedded = false; c.Bus.Servers = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
