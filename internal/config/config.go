package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type CaptureConfig struct {
	Command      string `yaml:"command"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	FrameMS      int    `yaml:"frame_ms"`
	ArtifactPath string `yaml:"artifact_path"`
}

type TranscriberConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Model            string `yaml:"model"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	CredentialKey    string `yaml:"credential_key"`
	KeyringService   string `yaml:"keyring_service"`
	KeyringDir       string `yaml:"keyring_dir"`
}

type Config struct {
	DaemonName  string            `yaml:"daemon_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Store       StoreConfig       `yaml:"store"`
	Capture     CaptureConfig     `yaml:"capture"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
}

func Default() Config {
	return Config{
		DaemonName:  "voxkeyd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path: "./data/voxkey-state.db",
		},
		Capture: CaptureConfig{
			Command:      "ffmpeg -loglevel quiet -f pulse -i default -ac 1 -ar 16000 -f s16le -",
			SampleRate:   16000,
			Channels:     1,
			FrameMS:      20,
			ArtifactPath: "./data/recording.wav",
		},
		Transcriber: TranscriberConfig{
			Endpoint:         "https://api.openai.com/v1/audio/transcriptions",
			Model:            "whisper-1",
			RequestTimeoutMS: 60000,
			CredentialKey:    "voxkey-api-key",
			KeyringService:   "voxkey",
			KeyringDir:       "",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DaemonName, "VOXKEY_DAEMON_NAME")
	overrideString(&cfg.Environment, "VOXKEY_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOXKEY_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOXKEY_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOXKEY_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOXKEY_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOXKEY_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOXKEY_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VOXKEY_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOXKEY_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "VOXKEY_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "VOXKEY_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOXKEY_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOXKEY_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOXKEY_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOXKEY_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOXKEY_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "VOXKEY_STORE_PATH")
	overrideString(&cfg.Capture.Command, "VOXKEY_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.SampleRate, "VOXKEY_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "VOXKEY_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.FrameMS, "VOXKEY_CAPTURE_FRAME_MS")
	overrideString(&cfg.Capture.ArtifactPath, "VOXKEY_CAPTURE_ARTIFACT_PATH")
	overrideString(&cfg.Transcriber.Endpoint, "VOXKEY_TRANSCRIBER_ENDPOINT")
	overrideString(&cfg.Transcriber.Model, "VOXKEY_TRANSCRIBER_MODEL")
	overrideInt(&cfg.Transcriber.RequestTimeoutMS, "VOXKEY_TRANSCRIBER_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Transcriber.CredentialKey, "VOXKEY_TRANSCRIBER_CREDENTIAL_KEY")
	overrideString(&cfg.Transcriber.KeyringService, "VOXKEY_TRANSCRIBER_KEYRING_SERVICE")
	overrideString(&cfg.Transcriber.KeyringDir, "VOXKEY_TRANSCRIBER_KEYRING_DIR")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.DaemonName == "" {
		return errors.New("daemon_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Capture.Command == "" {
		return errors.New("capture.command must not be empty")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.FrameMS <= 0 {
		return errors.New("capture.frame_ms must be positive")
	}
	if cfg.Capture.ArtifactPath == "" {
		return errors.New("capture.artifact_path must not be empty")
	}
	if cfg.Transcriber.Endpoint == "" {
		return errors.New("transcriber.endpoint must not be empty")
	}
	if cfg.Transcriber.Model == "" {
		return errors.New("transcriber.model must not be empty")
	}
	if cfg.Transcriber.RequestTimeoutMS <= 0 {
		return errors.New("transcriber.request_timeout_ms must be positive")
	}
	if cfg.Transcriber.CredentialKey == "" {
		return errors.New("transcriber.credential_key must not be empty")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
