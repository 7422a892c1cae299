package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"gallery-server/locomotion"
)

// Config is the host configuration. Every key has a default, so a config
// file is optional; GALLERY_* environment variables override both.
type Config struct {
	Addr       string `mapstructure:"addr"`
	ClientDir  string `mapstructure:"clientDir"`
	PublicURL  string `mapstructure:"publicUrl"`
	LogFile    string `mapstructure:"logFile"`
	LogLevel   string `mapstructure:"logLevel"`
	DBPath     string `mapstructure:"dbPath"`
	LayoutPath string `mapstructure:"layoutPath"`

	Admin       AdminConfig   `mapstructure:"admin"`
	TokenExpiry time.Duration `mapstructure:"tokenExpiry"`

	MaxSessions int           `mapstructure:"maxSessions"`
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`

	Locomotion LocomotionConfig `mapstructure:"locomotion"`
}

// AdminConfig guards the operator API. PassHash is a bcrypt hash; an empty
// hash disables the API.
type AdminConfig struct {
	User     string `mapstructure:"user"`
	PassHash string `mapstructure:"passHash"`
}

// LocomotionConfig carries tuning overrides. Zero values keep the defaults.
type LocomotionConfig struct {
	MoveSpeed       float64 `mapstructure:"moveSpeed"`
	DeadZone        float64 `mapstructure:"deadZone"`
	SmoothingFactor float64 `mapstructure:"smoothingFactor"`
	PlayerRadius    float64 `mapstructure:"playerRadius"`
	SnapAngleDeg    float64 `mapstructure:"snapAngleDeg"`
	SnapCooldown    float64 `mapstructure:"snapCooldown"`
	ArcSpeed        float64 `mapstructure:"arcSpeed"`
	ArcSegments     int     `mapstructure:"arcSegments"`
}

// Params applies the overrides on top of the default tuning.
func (lc LocomotionConfig) Params() locomotion.Params {
	p := locomotion.DefaultParams()
	if lc.MoveSpeed > 0 {
		p.MoveSpeed = lc.MoveSpeed
	}
	if lc.DeadZone > 0 {
		p.MoveDeadZone = lc.DeadZone
	}
	if lc.SmoothingFactor > 0 && lc.SmoothingFactor < 1 {
		p.SmoothingFactor = lc.SmoothingFactor
	}
	if lc.PlayerRadius > 0 {
		p.PlayerRadius = lc.PlayerRadius
	}
	if lc.SnapAngleDeg > 0 {
		p.SnapAngle = mgl64.DegToRad(lc.SnapAngleDeg)
	}
	if lc.SnapCooldown > 0 {
		p.SnapCooldown = lc.SnapCooldown
	}
	if lc.ArcSpeed > 0 {
		p.ArcSpeed = lc.ArcSpeed
	}
	if lc.ArcSegments > 0 {
		p.ArcSegments = lc.ArcSegments
	}
	return p
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("clientDir", "../client")
	v.SetDefault("publicUrl", "http://localhost:8080")
	v.SetDefault("logFile", "")
	v.SetDefault("logLevel", "info")
	v.SetDefault("dbPath", "gallery.db")
	v.SetDefault("layoutPath", "")

	v.SetDefault("admin.user", "admin")
	v.SetDefault("admin.passHash", "")
	v.SetDefault("tokenExpiry", "12h")

	v.SetDefault("maxSessions", 20)
	v.SetDefault("idleTimeout", "10m")

	v.SetDefault("locomotion.moveSpeed", 0)
	v.SetDefault("locomotion.deadZone", 0)
	v.SetDefault("locomotion.smoothingFactor", 0)
	v.SetDefault("locomotion.playerRadius", 0)
	v.SetDefault("locomotion.snapAngleDeg", 0)
	v.SetDefault("locomotion.snapCooldown", 0)
	v.SetDefault("locomotion.arcSpeed", 0)
	v.SetDefault("locomotion.arcSegments", 0)
}

// LoadConfig reads path (if non-empty) over the defaults and the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("maxSessions must be positive, got %d", cfg.MaxSessions)
	}
	return &cfg, nil
}
