package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quotation/backend/internal/domain/layout"
	"github.com/quotation/backend/internal/domain/printing"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Layout    LayoutConfig
	Preview   PreviewConfig
	Renderer  RendererConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	// Rotation settings, used when Output is a file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// ExportsPerMinute limits PDF exports per client; 0 disables the limit
	ExportsPerMinute int
	StreamHeartbeat  time.Duration
}

// LayoutConfig holds page geometry. Nothing about pages is hardcoded.
type LayoutConfig struct {
	RowsPerPage         int
	FirstPageHeaderRows int
	TextWidth           int
	PaperSize           string
	Orientation         string
	MarginTop           int
	MarginRight         int
	MarginBottom        int
	MarginLeft          int
}

// Capacity returns the page capacity used by the layout engine
func (l LayoutConfig) Capacity() layout.PageCapacity {
	return layout.PageCapacity{
		RowsPerPage:         l.RowsPerPage,
		FirstPageHeaderRows: l.FirstPageHeaderRows,
		TextWidth:           l.TextWidth,
	}
}

// PrintSettings returns the paper settings used for exports
func (l LayoutConfig) PrintSettings() (printing.Settings, error) {
	paper, ok := printing.ParsePaperSize(l.PaperSize)
	if !ok {
		return printing.Settings{}, fmt.Errorf("layout.paper_size %q is not supported", l.PaperSize)
	}
	orientation, ok := printing.ParseOrientation(l.Orientation)
	if !ok {
		return printing.Settings{}, fmt.Errorf("layout.orientation %q is not supported", l.Orientation)
	}
	margins, err := printing.NewMargins(l.MarginTop, l.MarginRight, l.MarginBottom, l.MarginLeft)
	if err != nil {
		return printing.Settings{}, fmt.Errorf("layout margins: %w", err)
	}
	return printing.Settings{PaperSize: paper, Orientation: orientation, Margins: margins}, nil
}

// PreviewConfig holds live preview and session settings
type PreviewConfig struct {
	// MinRefreshInterval is the minimum time between two preview renders of
	// one session; edits arriving faster are coalesced
	MinRefreshInterval time.Duration
	SessionIdleTTL     time.Duration
	SweepInterval      time.Duration
	MaxSessions        int
	QueueSize          int
	// JournalPath appends every session event as a JSON line when set
	JournalPath string
}

// RendererConfig holds document rendering settings
type RendererConfig struct {
	Engine          string // chromedp, wkhtmltopdf, none
	ChromeRemoteURL string
	NoSandbox       bool
	Timeout         time.Duration
	WkhtmltopdfPath string
	// TemplateDir overrides the embedded page templates. Its templates/*.html
	// must define "page" and "document"; see printing.NewTemplateEngine for
	// the functions available to them.
	TemplateDir string
	// StarterDir overrides embedded starter quotations
	StarterDir string
}

// StorageConfig holds export artifact storage settings
type StorageConfig struct {
	Backend         string // fs, s3
	BasePath        string
	BaseURL         string
	Retention       time.Duration
	CleanupInterval time.Duration
	// S3-compatible settings
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	Prefix            string
	PresignDownloads  bool
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool    // Expose Prometheus metrics at /metrics
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with QUOTE_ prefix (e.g., QUOTE_LAYOUT_ROWS_PER_PAGE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}
	return load(v)
}

// LoadFile loads configuration from an explicit file (any format viper
// knows by extension) plus environment variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("QUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			ExportsPerMinute: v.GetInt("http.exports_per_minute"),
			StreamHeartbeat:  v.GetDuration("http.stream_heartbeat"),
		},
		Layout: LayoutConfig{
			RowsPerPage:         v.GetInt("layout.rows_per_page"),
			FirstPageHeaderRows: v.GetInt("layout.first_page_header_rows"),
			TextWidth:           v.GetInt("layout.text_width"),
			PaperSize:           v.GetString("layout.paper_size"),
			Orientation:         v.GetString("layout.orientation"),
			MarginTop:           v.GetInt("layout.margin_top"),
			MarginRight:         v.GetInt("layout.margin_right"),
			MarginBottom:        v.GetInt("layout.margin_bottom"),
			MarginLeft:          v.GetInt("layout.margin_left"),
		},
		Preview: PreviewConfig{
			MinRefreshInterval: v.GetDuration("preview.min_refresh_interval"),
			SessionIdleTTL:     v.GetDuration("preview.session_idle_ttl"),
			SweepInterval:      v.GetDuration("preview.sweep_interval"),
			MaxSessions:        v.GetInt("preview.max_sessions"),
			QueueSize:          v.GetInt("preview.queue_size"),
			JournalPath:        v.GetString("preview.journal_path"),
		},
		Renderer: RendererConfig{
			Engine:          v.GetString("renderer.engine"),
			ChromeRemoteURL: v.GetString("renderer.chrome_remote_url"),
			NoSandbox:       v.GetBool("renderer.no_sandbox"),
			Timeout:         v.GetDuration("renderer.timeout"),
			WkhtmltopdfPath: v.GetString("renderer.wkhtmltopdf_path"),
			TemplateDir:     v.GetString("renderer.template_dir"),
			StarterDir:      v.GetString("renderer.starter_dir"),
		},
		Storage: StorageConfig{
			Backend:           v.GetString("storage.backend"),
			BasePath:          v.GetString("storage.base_path"),
			BaseURL:           v.GetString("storage.base_url"),
			Retention:         v.GetDuration("storage.retention"),
			CleanupInterval:   v.GetDuration("storage.cleanup_interval"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			Prefix:            v.GetString("storage.prefix"),
			PresignDownloads:  v.GetBool("storage.presign_downloads"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    !v.IsSet("telemetry.metrics_enabled") || v.GetBool("telemetry.metrics_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or
// environment
func Default() *Config {
	cfg := &Config{Telemetry: TelemetryConfig{MetricsEnabled: true}}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "quotation-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 14
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if cfg.HTTP.StreamHeartbeat == 0 {
		cfg.HTTP.StreamHeartbeat = 30 * time.Second
	}
	// CORS origins get no "*" fallback: cross-origin access must be configured
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID"}
	}

	if cfg.Layout.RowsPerPage == 0 {
		cfg.Layout.RowsPerPage = 38
	}
	if cfg.Layout.FirstPageHeaderRows == 0 {
		cfg.Layout.FirstPageHeaderRows = 6
	}
	if cfg.Layout.TextWidth == 0 {
		cfg.Layout.TextWidth = 48
	}
	if cfg.Layout.PaperSize == "" {
		cfg.Layout.PaperSize = string(printing.PaperSizeA4)
	}
	if cfg.Layout.Orientation == "" {
		cfg.Layout.Orientation = string(printing.OrientationPortrait)
	}
	if cfg.Layout.MarginTop == 0 && cfg.Layout.MarginRight == 0 && cfg.Layout.MarginBottom == 0 && cfg.Layout.MarginLeft == 0 {
		m := printing.DefaultMargins()
		cfg.Layout.MarginTop, cfg.Layout.MarginRight = m.Top, m.Right
		cfg.Layout.MarginBottom, cfg.Layout.MarginLeft = m.Bottom, m.Left
	}

	if cfg.Preview.MinRefreshInterval == 0 {
		cfg.Preview.MinRefreshInterval = 250 * time.Millisecond
	}
	if cfg.Preview.SessionIdleTTL == 0 {
		cfg.Preview.SessionIdleTTL = 30 * time.Minute
	}
	if cfg.Preview.SweepInterval == 0 {
		cfg.Preview.SweepInterval = time.Minute
	}
	if cfg.Preview.MaxSessions == 0 {
		cfg.Preview.MaxSessions = 1000
	}
	if cfg.Preview.QueueSize == 0 {
		cfg.Preview.QueueSize = 64
	}

	if cfg.Renderer.Engine == "" {
		cfg.Renderer.Engine = "chromedp"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
	if cfg.Renderer.WkhtmltopdfPath == "" {
		cfg.Renderer.WkhtmltopdfPath = "wkhtmltopdf"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/exports"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/api/v1/exports"
	}
	if cfg.Storage.Retention == 0 {
		cfg.Storage.Retention = 24 * time.Hour
	}
	if cfg.Storage.CleanupInterval == 0 {
		cfg.Storage.CleanupInterval = time.Hour
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := c.Layout.Capacity().Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if _, err := c.Layout.PrintSettings(); err != nil {
		return err
	}

	if c.HTTP.ExportsPerMinute < 0 {
		return fmt.Errorf("http.exports_per_minute cannot be negative")
	}

	if c.Preview.MinRefreshInterval < 0 {
		return fmt.Errorf("preview.min_refresh_interval cannot be negative")
	}
	if c.Preview.MaxSessions < 0 {
		return fmt.Errorf("preview.max_sessions cannot be negative")
	}
	if c.Preview.QueueSize <= 0 {
		return fmt.Errorf("preview.queue_size must be positive")
	}

	switch c.Renderer.Engine {
	case "chromedp", "wkhtmltopdf", "none":
	default:
		return fmt.Errorf("renderer.engine must be chromedp, wkhtmltopdf or none, got %q", c.Renderer.Engine)
	}

	switch c.Storage.Backend {
	case "fs":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be fs or s3, got %q", c.Storage.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Storage.Backend == "s3" && c.Storage.Endpoint != "" && !c.Storage.UseSSL &&
			!strings.HasPrefix(c.Storage.Endpoint, "https://") {
			return fmt.Errorf("storage.use_ssl must be true in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}
