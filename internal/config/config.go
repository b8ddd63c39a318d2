package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is intentionally small. Zero values are filled from Default().
type Config struct {
	// Addr is the listen address. Default ":9000".
	Addr string `yaml:"addr" json:"addr"`

	// Root is the directory served for browsing, download and upload.
	// Default: the process working directory.
	Root string `yaml:"root" json:"root"`

	// ThumbSize bounds both thumbnail dimensions in pixels.
	ThumbSize int `yaml:"thumb_size" json:"thumb_size"`
	// ThumbQuality is the JPEG quality of thumbnails (1-100).
	ThumbQuality int `yaml:"thumb_quality" json:"thumb_quality"`

	// MaxUploadBytes caps the Content-Length accepted on POST. 0 disables the cap.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// WebDAV mounts the root read/write under /_dav/.
	WebDAV bool `yaml:"webdav" json:"webdav"`

	// QR prints a terminal QR code of the LAN URL on startup.
	QR bool `yaml:"qr" json:"qr"`
}

const envPrefix = "INVIFILES_"

func Default() Config {
	return Config{
		Addr:              ":9000",
		Root:              ".",
		ThumbSize:         150,
		ThumbQuality:      80,
		MaxUploadBytes:    1 << 30,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		QR:                true,
	}
}

// Load builds a Config from defaults, an optional config file (YAML or JSON)
// and INVIFILES_* environment variables, in that order of precedence.
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := get("PORT"); ok {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("env %sPORT: %w", envPrefix, err)
		}
		cfg.Addr = ":" + v
	}
	if v, ok := get("ROOT"); ok {
		cfg.Root = v
	}
	if v, ok := get("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("env %sMAX_UPLOAD_BYTES: %w", envPrefix, err)
		}
		cfg.MaxUploadBytes = n
	}
	if v, ok := get("WEBDAV"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %sWEBDAV: %w", envPrefix, err)
		}
		cfg.WebDAV = b
	}
	if v, ok := get("QR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env %sQR: %w", envPrefix, err)
		}
		cfg.QR = b
	}
	return nil
}

// Finalize makes Root absolute and checks the values that would otherwise
// only fail at request time.
func (c *Config) Finalize() error {
	if strings.TrimSpace(c.Root) == "" {
		c.Root = "."
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("abs root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("root %s is not a directory", abs)
	}
	c.Root = abs

	if c.Addr == "" {
		c.Addr = ":9000"
	}
	if c.ThumbSize <= 0 {
		return fmt.Errorf("thumb_size must be positive, got %d", c.ThumbSize)
	}
	if c.ThumbQuality < 1 || c.ThumbQuality > 100 {
		return fmt.Errorf("thumb_quality must be within 1..100, got %d", c.ThumbQuality)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("max_upload_bytes must not be negative, got %d", c.MaxUploadBytes)
	}
	return nil
}
