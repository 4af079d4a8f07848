package posterkit

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/compositor"
	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/poster"
)

// Config holds all configuration for a posterkit server.
type Config struct {
	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path for the template catalog (default "data/posterkit.db")
	StaticDir    string // User-owned static assets served under /public (default "public")

	SessionSecret string // Required: cookie session secret
	CookieSecure  bool   // Set true for HTTPS

	TemplateCacheTTL time.Duration // Template catalog cache TTL (default 5min)
	SessionTTL       time.Duration // Idle editor session lifetime (default 2h)
	MaxUploadSize    int64         // Largest accepted upload in bytes (default 15MB)

	RemoveBgEndpoint string        // Background removal endpoint (default remove.bg)
	RemoveBgAPIKey   string        // Key used when a request carries none
	RemovalLimit     int           // Removals per IP per window (default 10)
	RemovalWindow    time.Duration // Removal rate window (default 1min)

	FontPath  string            // TTF used for the price label (default Go Bold)
	Templates []poster.Template // Catalog seeded on start (default DefaultTemplates)
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/posterkit.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.TemplateCacheTTL == 0 {
		c.TemplateCacheTTL = 5 * time.Minute
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = editor.DefaultIdleTTL
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 15 << 20
	}
	if c.RemovalLimit == 0 {
		c.RemovalLimit = 10
	}
	if c.RemovalWindow == 0 {
		c.RemovalWindow = time.Minute
	}
	if len(c.Templates) == 0 {
		c.Templates = poster.DefaultTemplates()
	}
}

// fileConfig is the on-disk TOML shape of Config.
type fileConfig struct {
	Addr             string `toml:"addr"`
	Database         string `toml:"database"`
	StaticDir        string `toml:"static_dir"`
	CookieSecure     bool   `toml:"cookie_secure"`
	TemplateCacheTTL string `toml:"template_cache_ttl"`
	SessionTTL       string `toml:"session_ttl"`
	MaxUploadMB      int64  `toml:"max_upload_mb"`
	Font             string `toml:"font"`

	RemoveBg struct {
		Endpoint string `toml:"endpoint"`
		Limit    int    `toml:"limit"`
		Window   string `toml:"window"`
	} `toml:"removebg"`

	Templates []poster.Template `toml:"templates"`
}

// LoadConfigFile reads a TOML config file. Secrets are never read from
// the file; set them on the returned Config from the environment.
//
//	addr = ":8080"
//	session_ttl = "1h"
//
//	[removebg]
//	limit = 5
//
//	[[templates]]
//	name = "Sale"
//	overlay = "/public/overlays/sale.png"
//	width = 1080
//	height = 1920
//	price_area = { x = 540.0, y = 960.0, font_size = 80 }
func LoadConfigFile(path string) (Config, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return Config{}, fmt.Errorf("posterkit: read config: %w", err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return Config{}, fmt.Errorf("posterkit: unknown config key %q", keys[0].String())
	}

	cfg := Config{
		Addr:             fc.Addr,
		DatabasePath:     fc.Database,
		StaticDir:        fc.StaticDir,
		CookieSecure:     fc.CookieSecure,
		MaxUploadSize:    fc.MaxUploadMB << 20,
		RemoveBgEndpoint: fc.RemoveBg.Endpoint,
		RemovalLimit:     fc.RemoveBg.Limit,
		FontPath:         fc.Font,
		Templates:        fc.Templates,
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"template_cache_ttl", fc.TemplateCacheTTL, &cfg.TemplateCacheTTL},
		{"session_ttl", fc.SessionTTL, &cfg.SessionTTL},
		{"removebg.window", fc.RemoveBg.Window, &cfg.RemovalWindow},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("posterkit: %s: %w", d.name, err)
		}
		*d.dst = v
	}
	for i, t := range cfg.Templates {
		if !t.Valid() {
			return Config{}, fmt.Errorf("posterkit: template %d (%q) needs a name, width and height", i, t.Name)
		}
	}
	return cfg, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the logger used by the server and its components.
func WithLogger(l *logrus.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithRemover replaces the background removal client.
func WithRemover(r editor.Remover) Option {
	return func(a *App) {
		a.Remover = r
	}
}

// WithLoader replaces how template overlays are loaded for export.
func WithLoader(l compositor.Loader) Option {
	return func(a *App) {
		a.loader = l
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
