package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Tools     ToolsConfig     `yaml:"tools" json:"tools"`
	Network   NetworkConfig   `yaml:"network" json:"network"`
	Extractor ExtractorConfig `yaml:"extractor" json:"extractor"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        string   `yaml:"port" json:"port"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// ToolsConfig points at the external binaries.
type ToolsConfig struct {
	YtDlpPath     string `yaml:"ytdlp_path" json:"ytdlp_path"`
	FFmpegPath    string `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	NoAutoInstall bool   `yaml:"no_auto_install" json:"no_auto_install"`
}

// NetworkConfig controls egress IP discovery and Tor handling.
type NetworkConfig struct {
	IPEchoURL      string        `yaml:"ip_echo_url" json:"ip_echo_url"`
	TorHost        string        `yaml:"tor_host" json:"tor_host"`
	TorPorts       []int         `yaml:"tor_ports" json:"tor_ports"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts" json:"retry_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// ExtractorConfig selects the extraction engine.
type ExtractorConfig struct {
	Engine  string        `yaml:"engine" json:"engine"` // ytdlp or native
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// ExactResolution matches custom resolutions as whole numbers instead of substrings.
	ExactResolution bool `yaml:"exact_resolution" json:"exact_resolution"`
}

// OutputConfig holds download destination defaults.
type OutputConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// LoggingConfig controls hclog output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	JSON  bool   `yaml:"json" json:"json"`
}

// Default returns a configuration with every default value set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Tools: ToolsConfig{
			YtDlpPath:  "yt-dlp",
			FFmpegPath: "ffmpeg",
		},
		Network: NetworkConfig{
			IPEchoURL:      "https://checkip.amazonaws.com",
			TorHost:        "127.0.0.1",
			TorPorts:       []int{9050, 9150},
			ProbeTimeout:   10 * time.Second,
			RetryAttempts:  3,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
		},
		Extractor: ExtractorConfig{
			Engine:  "ytdlp",
			Timeout: 2 * time.Minute,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("YTDLX_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("YTDLX_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("YTDLX_YTDLP_PATH"); v != "" {
		c.Tools.YtDlpPath = v
	}
	if v := os.Getenv("YTDLX_FFMPEG_PATH"); v != "" {
		c.Tools.FFmpegPath = v
	}
	if os.Getenv("YTDLX_NO_AUTO_INSTALL") == "1" {
		c.Tools.NoAutoInstall = true
	}
	if v := os.Getenv("YTDLX_IP_ECHO_URL"); v != "" {
		c.Network.IPEchoURL = v
	}
	if v := os.Getenv("YTDLX_TOR_PORTS"); v != "" {
		ports := make([]int, 0, 2)
		for _, p := range splitList(v) {
			n, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid YTDLX_TOR_PORTS entry %q: %w", p, err)
			}
			ports = append(ports, n)
		}
		c.Network.TorPorts = ports
	}
	if v := os.Getenv("YTDLX_ENGINE"); v != "" {
		c.Extractor.Engine = v
	}
	if os.Getenv("YTDLX_EXACT_RESOLUTION") == "1" {
		c.Extractor.ExactResolution = true
	}
	if v := os.Getenv("YTDLX_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("YTDLX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, &ValidationError{Field: "server.port", Message: "must not be empty"})
	}
	switch c.Extractor.Engine {
	case "ytdlp", "native":
	default:
		errs = append(errs, &ValidationError{Field: "extractor.engine", Message: "must be ytdlp or native"})
	}
	for _, p := range c.Network.TorPorts {
		if p <= 0 || p > 65535 {
			errs = append(errs, &ValidationError{Field: "network.tor_ports", Message: fmt.Sprintf("port %d out of range", p)})
		}
	}
	if c.Network.RetryAttempts < 1 {
		errs = append(errs, &ValidationError{Field: "network.retry_attempts", Message: "must be at least 1"})
	}
	if c.Network.MaxBackoff < c.Network.InitialBackoff {
		errs = append(errs, &ValidationError{Field: "network.max_backoff", Message: "must not be lower than initial_backoff"})
	}
	return errors.Join(errs...)
}

// ValidationError reports one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
