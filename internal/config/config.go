package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string       `json:"serverAddress" yaml:"serverAddress"`
	DatabasePath  string       `json:"databasePath" yaml:"databasePath"`
	DatabaseURL   string       `json:"databaseUrl" yaml:"databaseUrl"`
	MediaLibrary  MediaLibrary `json:"mediaLibrary" yaml:"mediaLibrary"`
	Upload        Upload       `json:"upload" yaml:"upload"`
	Auth          Auth         `json:"auth" yaml:"auth"`
	SMTP          SMTP         `json:"smtp" yaml:"smtp"`
	Telemetry     Telemetry    `json:"telemetry" yaml:"telemetry"`
}

// MediaLibrary holds the credentials and endpoints of the photo storage provider.
// The refresh token belongs to the account that owns every app-managed album.
type MediaLibrary struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
	RefreshToken string `json:"refreshToken" yaml:"refreshToken"`
	APIBaseURL   string `json:"apiBaseUrl" yaml:"apiBaseUrl"`
	UploadURL    string `json:"uploadUrl" yaml:"uploadUrl"`
	TokenURL     string `json:"tokenUrl" yaml:"tokenUrl"`

	RequestTimeoutSeconds  int `json:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	TransferTimeoutMinutes int `json:"transferTimeoutMinutes" yaml:"transferTimeoutMinutes"`
	MaxReadRetries         int `json:"maxReadRetries" yaml:"maxReadRetries"`
}

// Upload configuration
type Upload struct {
	MaxImageSizeMB     int64    `json:"maxImageSizeMB" yaml:"maxImageSizeMB"`
	MaxVideoSizeMB     int64    `json:"maxVideoSizeMB" yaml:"maxVideoSizeMB"`
	MaxBatchSize       int      `json:"maxBatchSize" yaml:"maxBatchSize"`
	ImageMimeTypes     []string `json:"imageMimeTypes" yaml:"imageMimeTypes"`
	VideoMimeTypes     []string `json:"videoMimeTypes" yaml:"videoMimeTypes"`
	ImageExtensions    []string `json:"imageExtensions" yaml:"imageExtensions"`
	VideoExtensions    []string `json:"videoExtensions" yaml:"videoExtensions"`
	SyncTimeoutSeconds int      `json:"syncTimeoutSeconds" yaml:"syncTimeoutSeconds"`
}

// Auth configuration for magic-link sign in and web sessions
type Auth struct {
	BaseURL              string `json:"baseUrl" yaml:"baseUrl"`
	MagicLinkTTLMinutes  int    `json:"magicLinkTtlMinutes" yaml:"magicLinkTtlMinutes"`
	SessionDurationHours int    `json:"sessionDurationHours" yaml:"sessionDurationHours"`
	CookieName           string `json:"cookieName" yaml:"cookieName"`
	CookieSecure         bool   `json:"cookieSecure" yaml:"cookieSecure"`
}

// SMTP configuration
type SMTP struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
	FromName    string `json:"fromName" yaml:"fromName"`
	UseTLS      bool   `json:"useTls" yaml:"useTls"`
	SkipVerify  bool   `json:"skipVerify" yaml:"skipVerify"`
}

// Telemetry configuration
type Telemetry struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"serviceName" yaml:"serviceName"`
	OTLPEndpoint string `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	Environment  string `json:"environment" yaml:"environment"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// RequestTimeout is the deadline for a single JSON call to the provider
func (m MediaLibrary) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

// TransferTimeout is the deadline for streaming one file to the upload endpoint
func (m MediaLibrary) TransferTimeout() time.Duration {
	return time.Duration(m.TransferTimeoutMinutes) * time.Minute
}

// SyncTimeout bounds a detached mirror sync
func (u Upload) SyncTimeout() time.Duration {
	return time.Duration(u.SyncTimeoutSeconds) * time.Second
}

// MagicLinkTTL is how long an emailed sign-in link stays valid
func (a Auth) MagicLinkTTL() time.Duration {
	return time.Duration(a.MagicLinkTTLMinutes) * time.Minute
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddress: ":8080",
		DatabasePath:  "weddingphotos.db",
		MediaLibrary: MediaLibrary{
			APIBaseURL:             "https://photoslibrary.googleapis.com/v1",
			UploadURL:              "https://photoslibrary.googleapis.com/v1/uploads",
			TokenURL:               "https://oauth2.googleapis.com/token",
			RequestTimeoutSeconds:  30,
			TransferTimeoutMinutes: 10,
			MaxReadRetries:         3,
		},
		Upload: Upload{
			MaxImageSizeMB: 10,
			MaxVideoSizeMB: 100,
			MaxBatchSize:   50,
			ImageMimeTypes: []string{
				"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
			},
			VideoMimeTypes: []string{
				"video/mp4", "video/mov", "video/quicktime", "video/avi", "video/x-msvideo",
				"video/wmv", "video/x-ms-wmv", "video/flv", "video/x-flv", "video/webm",
			},
			ImageExtensions:    []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
			VideoExtensions:    []string{".mp4", ".mov", ".avi", ".wmv", ".flv", ".webm"},
			SyncTimeoutSeconds: 120,
		},
		Auth: Auth{
			BaseURL:              "http://localhost:8080",
			MagicLinkTTLMinutes:  15,
			SessionDurationHours: 24 * 7,
			CookieName:           "session_token",
		},
		SMTP: SMTP{
			Port:     587,
			FromName: "Wedding Photos",
			UseTLS:   true,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			ServiceName:  "weddingphotos-server",
			OTLPEndpoint: "localhost:4317",
			Environment:  "development",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := unmarshalFile(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

func unmarshalFile(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	// Media library credentials
	if v := os.Getenv("MEDIA_LIBRARY_CLIENT_ID"); v != "" {
		cfg.MediaLibrary.ClientID = v
	}
	if v := os.Getenv("MEDIA_LIBRARY_CLIENT_SECRET"); v != "" {
		cfg.MediaLibrary.ClientSecret = v
	}
	if v := os.Getenv("MEDIA_LIBRARY_REFRESH_TOKEN"); v != "" {
		cfg.MediaLibrary.RefreshToken = v
	}
	if v := os.Getenv("MEDIA_LIBRARY_API_URL"); v != "" {
		cfg.MediaLibrary.APIBaseURL = v
	}
	if v := os.Getenv("MEDIA_LIBRARY_UPLOAD_URL"); v != "" {
		cfg.MediaLibrary.UploadURL = v
	}

	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Auth.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("SESSION_DURATION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.Auth.SessionDurationHours = hours
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.Auth.CookieSecure = v == "true" || v == "1"
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.SMTP.FromAddress = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Telemetry.Environment = v
	}
}

// Validate reports configuration that would make the server unusable
func (c *Config) Validate() error {
	var missing []string
	if c.MediaLibrary.ClientID == "" {
		missing = append(missing, "mediaLibrary.clientId")
	}
	if c.MediaLibrary.ClientSecret == "" {
		missing = append(missing, "mediaLibrary.clientSecret")
	}
	if c.MediaLibrary.RefreshToken == "" {
		missing = append(missing, "mediaLibrary.refreshToken")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Upload.MaxBatchSize <= 0 {
		return fmt.Errorf("upload.maxBatchSize must be positive")
	}
	if c.Upload.MaxImageSizeMB <= 0 || c.Upload.MaxVideoSizeMB <= 0 {
		return fmt.Errorf("upload size limits must be positive")
	}
	return nil
}
