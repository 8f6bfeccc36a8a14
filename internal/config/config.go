package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Authorization Authorization
	Storage       Storage
	Server        Server
}

// Authorization is forwarded to the image host on every upload
type Authorization struct {
	Cookie string `env:"cookie"`
	Token  string `env:"token"`
}

type Storage struct {
	UploadURL string        `env:"UPLOAD_URL,notEmpty"`
	Field     string        `env:"UPLOAD_FIELD" envDefault:"file"`
	Timeout   time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"15s"`
}

type Server struct {
	Port        string `env:"PORT" envDefault:"8081"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MaxUploadMB int    `env:"MAX_UPLOAD_MB" envDefault:"20"`
	MaxFiles    int    `env:"MAX_FILES" envDefault:"10"`
	Workers     int    `env:"WORKERS" envDefault:"4"`
	RecentSize  int    `env:"RECENT_SIZE" envDefault:"50"`
	StripExif   bool   `env:"STRIP_EXIF" envDefault:"true"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects limits that would disable uploads entirely
func (c *Config) Validate() error {
	var errs []error
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if c.Server.MaxFiles <= 0 {
		errs = append(errs, errors.New("MAX_FILES must be positive"))
	}
	if c.Server.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.Server.RecentSize <= 0 {
		errs = append(errs, errors.New("RECENT_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes is the per-file size limit
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
