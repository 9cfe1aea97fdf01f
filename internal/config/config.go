package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	TrustProxy   bool
}

type DbConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

type SessionConfig struct {
	TTL        time.Duration
	SigningKey []byte
	Issuer     string
	Audience   string
	KeyID      string
}

type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// RuleConfig is one protected pattern as written in the environment or the
// rules file.
type RuleConfig struct {
	Pattern    string `yaml:"pattern"`
	Capability string `yaml:"capability"`
}

type GateConfig struct {
	LoginPath           string
	ReturnToCurrentPage bool
	ReturnToParam       string
	RequiredCapability  string
	Rules               []RuleConfig
}

type AuditConfig struct {
	BufferSize int
}

type Config struct {
	AppConfig     *AppConfig
	DbConfig      *DbConfig
	SessionConfig *SessionConfig
	CookieConfig  *CookieConfig
	GateConfig    *GateConfig
	AuditConfig   *AuditConfig
}

const minSigningKeyLen = 32

var (
	ErrMissingSigningKey = errors.New("SESSION_SIGNING_KEY must be at least 32 bytes")
	ErrNoProtectedRules  = errors.New("no protected patterns configured: set GATE_PROTECTED_PATTERNS or GATE_RULES_FILE")
	ErrInvalidLoginPath  = errors.New("GATE_LOGIN_PATH must be a local path starting with /")
)

// LoadConfig reads envFile (if present) into the process environment and
// builds the full configuration from it.
func LoadConfig(logger *zap.Logger, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Error("failed to load .env file", zap.String("path", envFile), zap.Error(err))
				return nil, err
			}
			logger.Info("no .env file, using process environment", zap.String("path", envFile))
		}
	}

	/** app config */
	readTimeout, err := envDuration("APP_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := envDuration("APP_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := envDuration("APP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	trustProxy, err := envBool("APP_TRUSTED_PROXY", false)
	if err != nil {
		return nil, err
	}
	appConfig := &AppConfig{
		Port:         envString("APP_PORT", "8080"),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		CORSOrigins:  splitList(os.Getenv("APP_CORS_ALLOWED_ORIGINS")),
		TrustProxy:   trustProxy,
	}

	/** db config */
	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	maxConnLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	dbConfig := &DbConfig{
		DSN:             os.Getenv("POSTGRES_DSN"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		MaxConnLifetime: maxConnLifetime,
	}

	/** session config */
	ttl, err := envDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("SESSION_TTL must be at least 1s, got %s", ttl)
	}
	key := os.Getenv("SESSION_SIGNING_KEY")
	if len(key) < minSigningKeyLen {
		return nil, ErrMissingSigningKey
	}
	sessionConfig := &SessionConfig{
		TTL:        ttl,
		SigningKey: []byte(key),
		Issuer:     envString("SESSION_ISSUER", "cmsgate"),
		Audience:   envString("SESSION_AUDIENCE", "cms"),
		KeyID:      os.Getenv("SESSION_KEY_ID"),
	}

	/** cookie config */
	secure, err := envBool("COOKIE_SECURE", true)
	if err != nil {
		return nil, err
	}
	sameSite, err := parseSameSite(os.Getenv("COOKIE_SAMESITE"))
	if err != nil {
		return nil, err
	}
	cookieConfig := &CookieConfig{
		Name:     envString("COOKIE_NAME", "session"),
		Domain:   os.Getenv("COOKIE_DOMAIN"),
		Secure:   secure,
		SameSite: sameSite,
	}

	/** gate config */
	returnTo, err := envBool("GATE_RETURN_TO_CURRENT_PAGE", false)
	if err != nil {
		return nil, err
	}
	gateConfig := &GateConfig{
		LoginPath:           os.Getenv("GATE_LOGIN_PATH"),
		ReturnToCurrentPage: returnTo,
		ReturnToParam:       envString("GATE_RETURN_TO_PARAM", "returnTo"),
		RequiredCapability:  envString("GATE_REQUIRED_CAPABILITY", "admin:admin"),
	}
	if gateConfig.LoginPath != "" && !strings.HasPrefix(gateConfig.LoginPath, "/") {
		return nil, ErrInvalidLoginPath
	}
	if file := os.Getenv("GATE_RULES_FILE"); file != "" {
		rules, err := LoadRulesFile(file)
		if err != nil {
			return nil, err
		}
		gateConfig.Rules = append(gateConfig.Rules, rules...)
	}
	gateConfig.Rules = append(gateConfig.Rules, ParseRules(os.Getenv("GATE_PROTECTED_PATTERNS"))...)
	for i := range gateConfig.Rules {
		if gateConfig.Rules[i].Capability == "" {
			gateConfig.Rules[i].Capability = gateConfig.RequiredCapability
		}
	}
	if len(gateConfig.Rules) == 0 {
		return nil, ErrNoProtectedRules
	}

	/** audit config */
	bufferSize, err := envInt("AUDIT_BUFFER_SIZE", 256)
	if err != nil {
		return nil, err
	}

	return &Config{
		AppConfig:     appConfig,
		DbConfig:      dbConfig,
		SessionConfig: sessionConfig,
		CookieConfig:  cookieConfig,
		GateConfig:    gateConfig,
		AuditConfig:   &AuditConfig{BufferSize: bufferSize},
	}, nil
}

// ParseRules parses "pattern[=capability]" entries separated by commas.
// Entries without a capability get the gate's required capability later.
func ParseRules(raw string) []RuleConfig {
	var rules []RuleConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, capability, _ := strings.Cut(entry, "=")
		rules = append(rules, RuleConfig{
			Pattern:    strings.TrimSpace(pattern),
			Capability: strings.TrimSpace(capability),
		})
	}
	return rules
}

type rulesFile struct {
	Rules []RuleConfig `yaml:"rules"`
}

func LoadRulesFile(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal rules file: %w", err)
	}
	return f.Rules, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("COOKIE_SAMESITE: unknown mode %q", v)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
