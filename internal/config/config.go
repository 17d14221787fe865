package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/choretracker/internal/security"
)

// AuthMode は認証方式を表す。
type AuthMode string

const (
	// AuthModeTicket は署名付きCookieチケットによる認証。
	AuthModeTicket AuthMode = "ticket"
	// AuthModeInsecureQuery はクエリパラメータのuser_idをそのまま信頼する開発専用の認証。
	AuthModeInsecureQuery AuthMode = "insecure-query"
)

// DefaultGoogleCertsURL はGoogleの公開証明書エンドポイント。
const DefaultGoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"

// SupportedDigests はチケット署名で利用可能なダイジェスト名。
var SupportedDigests = []string{"sha256", "sha512", "sha3-256", "sha3-512", "blake2b-256", "blake2b-512"}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DBName            string
	DBHost            string
	DBPort            int
	DBUsername        string
	DBPassword        string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBQueryTimeout    time.Duration

	// Mode
	Development bool
	AuthMode    AuthMode

	// Cookie ticket
	CookieSecret string
	CookieName   string
	CookieDomain string
	CookiePath   string
	ReauthPeriod time.Duration
	TicketDigest string

	// Google sign-in
	GoogleClientID    string
	GoogleCertsURL    string
	GoogleCertsMaxAge time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitSignIn  int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
	CSRFProtection    bool
	TrustProxyHeaders bool

	// Logging
	LogLevel string
}

// LoadDotEnv は.envファイルから環境変数を読み込む。
// ファイルが存在しない場合はエラーとしない。既に設定済みの環境変数が優先される。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や設定値が矛盾する場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Development = getEnvBool("DEVELOPMENT", false)
	cfg.AuthMode = AuthMode(getEnvString("AUTH_MODE", string(AuthModeTicket)))

	switch cfg.AuthMode {
	case AuthModeTicket:
	case AuthModeInsecureQuery:
		if !cfg.Development {
			return nil, fmt.Errorf("AUTH_MODE=%s requires DEVELOPMENT=true", cfg.AuthMode)
		}
	default:
		return nil, fmt.Errorf("unsupported AUTH_MODE: %q (allowed: %s, %s)", cfg.AuthMode, AuthModeTicket, AuthModeInsecureQuery)
	}

	// Required fields
	var missing []string

	cfg.DBName = os.Getenv("DB_NAME")
	if cfg.DBName == "" {
		missing = append(missing, "DB_NAME")
	}

	cfg.CookieSecret = os.Getenv("COOKIE_SECRET")
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.AuthMode == AuthModeTicket {
		if cfg.CookieSecret == "" {
			missing = append(missing, "COOKIE_SECRET")
		}
		if cfg.GoogleClientID == "" {
			missing = append(missing, "GOOGLE_CLIENT_ID")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBHost = getEnvString("DB_HOST", "")
	cfg.DBPort = getEnvInt("DB_PORT", 5432)
	cfg.DBUsername = getEnvString("DB_USERNAME", "")
	cfg.DBPassword = getEnvString("DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvString("DB_SSLMODE", "disable")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.DBQueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	cfg.CookieName = getEnvString("COOKIE_NAME", "AUTHTKT")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CookiePath = getEnvString("COOKIE_PATH", "/")
	cfg.ReauthPeriod = getEnvDuration("REAUTH_PERIOD", 24*time.Hour)
	cfg.TicketDigest = strings.ToLower(getEnvString("TICKET_DIGEST", "sha512"))
	cfg.GoogleCertsURL = getEnvString("GOOGLE_CERTS_URL", DefaultGoogleCertsURL)
	cfg.GoogleCertsMaxAge = getEnvDuration("GOOGLE_CERTS_MAX_AGE", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.CSRFProtection = getEnvBool("CSRF_PROTECTION", false)
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if !isSupportedDigest(cfg.TicketDigest) {
		return nil, fmt.Errorf("unsupported TICKET_DIGEST: %q (allowed: %v)", cfg.TicketDigest, SupportedDigests)
	}
	if cfg.ReauthPeriod <= 0 {
		return nil, fmt.Errorf("REAUTH_PERIOD must be positive: %s", cfg.ReauthPeriod)
	}
	if err := security.NewSSRFGuard().ValidateURL(cfg.GoogleCertsURL); err != nil {
		return nil, fmt.Errorf("invalid GOOGLE_CERTS_URL: %w", err)
	}

	return cfg, nil
}

// CookieSecure はチケットCookieにSecure属性を付与するかを返す。
// 開発モードではHTTPでの動作確認のため付与しない。
func (c *Config) CookieSecure() bool {
	return !c.Development
}

// GoogleSignInEnabled はGoogleサインインのルートを公開するかを返す。
// クライアントIDがない場合はaudienceを検証できないため公開しない。
func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != ""
}

// APIPrefix はAPIルートのマウント先を返す。
func (c *Config) APIPrefix() string {
	if c.Development {
		return "/apis"
	}
	return "/"
}

// DatabaseURL は接続パラメータからlib/pq形式の接続URLを組み立てる。
// DB_HOSTが空の場合はホストを省略し、ドライバのデフォルト接続先を使う。
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Path:   "/" + c.DBName,
	}
	if c.DBHost != "" {
		u.Host = fmt.Sprintf("%s:%d", c.DBHost, c.DBPort)
	}
	switch {
	case c.DBUsername != "" && c.DBPassword != "":
		u.User = url.UserPassword(c.DBUsername, c.DBPassword)
	case c.DBUsername != "":
		u.User = url.User(c.DBUsername)
	}
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func isSupportedDigest(name string) bool {
	for _, d := range SupportedDigests {
		if d == name {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
