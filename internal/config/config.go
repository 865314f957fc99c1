package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrBadEligibility = errors.New("config: layout.eligibility must be role or all")
	ErrBadViewport    = errors.New("config: viewport must be positive")
	ErrBadQueue       = errors.New("config: events.queue_size must be positive")
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Layout LayoutConfig `mapstructure:"layout"`
	Events EventsConfig `mapstructure:"events"`
	RTC    RTCConfig    `mapstructure:"rtc"`
}

type LayoutConfig struct {
	LastN                    int    `mapstructure:"last_n"`
	TileView                 bool   `mapstructure:"tile_view"`
	DominantSpeakerOrdering  bool   `mapstructure:"dominant_speaker_ordering"`
	DominantSpeakerIndicator bool   `mapstructure:"dominant_speaker_indicator"`
	Eligibility              string `mapstructure:"eligibility"`
	ViewportWidth            int    `mapstructure:"viewport_width"`
	ViewportHeight           int    `mapstructure:"viewport_height"`
}

type EventsConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type RTCConfig struct {
	STUNURLs []string `mapstructure:"stun_urls"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "filmstrip-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("layout.last_n", -1)
	v.SetDefault("layout.tile_view", false)
	v.SetDefault("layout.dominant_speaker_ordering", true)
	v.SetDefault("layout.dominant_speaker_indicator", false)
	v.SetDefault("layout.eligibility", "role")
	v.SetDefault("layout.viewport_width", 1280)
	v.SetDefault("layout.viewport_height", 720)

	v.SetDefault("events.queue_size", 64)
	v.SetDefault("events.rate_limit", 50)
	v.SetDefault("events.rate_interval", "1s")

	v.SetDefault("rtc.stun_urls", []string{"stun:stun.l.google.com:19302"})
}

// Load reads config/config.<CONFIG_ENV>.yaml. FILMSTRIP_* environment
// variables override file values, e.g. FILMSTRIP_LAYOUT_LAST_N.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("FILMSTRIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Int("last_n", cfg.Layout.LastN).
		Str("eligibility", cfg.Layout.Eligibility).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Layout.Eligibility {
	case "", "role", "all":
	default:
		return fmt.Errorf("%w: %q", ErrBadEligibility, c.Layout.Eligibility)
	}
	if c.Layout.ViewportWidth <= 0 || c.Layout.ViewportHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadViewport, c.Layout.ViewportWidth, c.Layout.ViewportHeight)
	}
	if c.Events.QueueSize <= 0 {
		return ErrBadQueue
	}
	return nil
}
