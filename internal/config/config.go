package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	CallInterval   time.Duration `mapstructure:"call_interval"`
	DefaultBackoff time.Duration `mapstructure:"default_backoff"`
	Mock           bool          `mapstructure:"mock"`
}

type SignalConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

type CameraConfig struct {
	Mock bool `mapstructure:"mock"`
	FPS  int  `mapstructure:"fps"`
}

type TTSConfig struct {
	APIKey  string `mapstructure:"api_key"`
	VoiceID string `mapstructure:"voice_id"`
	ModelID string `mapstructure:"model_id"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Camera   CameraConfig   `mapstructure:"camera"`
	TTS      TTSConfig      `mapstructure:"tts"`
}

// Load reads config.yaml from the working directory (optional) with
// TRAFFIC_* environment overrides, e.g. TRAFFIC_GEMINI_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRAFFIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so environment overrides reach Unmarshal.
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.call_interval", 12*time.Second)
	v.SetDefault("gemini.default_backoff", 120*time.Second)
	v.SetDefault("gemini.mock", false)
	v.SetDefault("signal.tick_interval", 5*time.Second)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)
	v.SetDefault("camera.mock", true)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice_id", "pNInz6obpgDQGcFmaJgB")
	v.SetDefault("tts.model_id", "eleven_turbo_v2_5")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
