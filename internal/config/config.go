package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Portal  PortalConfig  `json:"portal"`
	Captcha CaptchaConfig `json:"captcha"`
	Browser BrowserConfig `json:"browser"`
	Log     LogConfig     `json:"log"`
	Debug   DebugConfig   `json:"debug"`
}

// PortalConfig holds the target portal and the identification to consult
type PortalConfig struct {
	BaseURL        string        `json:"base_url"`
	TipoID         string        `json:"tipo_id"`
	NroID          string        `json:"nro_id"`
	CaptchaSiteKey string        `json:"captcha_site_key"`
	FormTimeout    time.Duration `json:"form_timeout"`
	VerifyAttempts int           `json:"verify_attempts"`
	VerifyInterval time.Duration `json:"verify_interval"`
	SettleDelay    time.Duration `json:"settle_delay"`
	ReturnDelay    time.Duration `json:"return_delay"`
}

// CaptchaConfig holds captcha resolution configuration
type CaptchaConfig struct {
	SolverAPIKey  string        `json:"solver_api_key"`
	SolverBaseURL string        `json:"solver_base_url"`
	Timeout       time.Duration `json:"timeout"`
	PollInterval  time.Duration `json:"poll_interval"`
	NoticeAfter   time.Duration `json:"notice_after"`
	ForceManual   bool          `json:"force_manual"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless     bool          `json:"headless"`
	UserAgent    string        `json:"user_agent"`
	WindowWidth  int           `json:"window_width"`
	WindowHeight int           `json:"window_height"`
	StartTimeout time.Duration `json:"start_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DebugConfig holds debug artifact configuration
type DebugConfig struct {
	Dir string `json:"dir"`
}

var tipoNames = map[string]string{
	"1": "DNI",
	"2": "CUIT",
	"4": "SOCIO",
}

// TipoNombre returns the human label for the configured identification type
func (p PortalConfig) TipoNombre() string {
	if name, ok := tipoNames[p.TipoID]; ok {
		return name
	}
	return "ID"
}

// Load loads configuration from environment variables. A .env file next to
// the binary is picked up first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Portal: PortalConfig{
			BaseURL:        getEnv("CALF_BASE_URL", "https://sixon.com.ar/PortalClientes_CALF_PROD/com.portalclientes.portalloginsinregistro"),
			TipoID:         getEnv("CALF_TIPO_ID", "4"),
			NroID:          getEnv("CALF_NRO_ID", ""),
			CaptchaSiteKey: getEnv("CALF_CAPTCHA_SITEKEY", ""),
			FormTimeout:    time.Duration(getEnvAsInt("CALF_FORM_TIMEOUT", 30)) * time.Second,
			VerifyAttempts: getEnvAsInt("CALF_VERIFY_ATTEMPTS", 20),
			VerifyInterval: time.Duration(getEnvAsInt("CALF_VERIFY_INTERVAL", 1)) * time.Second,
			SettleDelay:    time.Duration(getEnvAsInt("CALF_SETTLE_DELAY", 5)) * time.Second,
			ReturnDelay:    time.Duration(getEnvAsInt("CALF_RETURN_DELAY", 3)) * time.Second,
		},
		Captcha: CaptchaConfig{
			SolverAPIKey:  getEnv("CAPTCHA_API_KEY", ""),
			SolverBaseURL: getEnv("CAPTCHA_API_URL", "https://api.anti-captcha.com"),
			Timeout:       time.Duration(getEnvAsInt("CAPTCHA_TIMEOUT", 120)) * time.Second,
			PollInterval:  time.Duration(getEnvAsInt("CAPTCHA_POLL_INTERVAL", 2)) * time.Second,
			NoticeAfter:   time.Duration(getEnvAsInt("CAPTCHA_NOTICE_AFTER", 5)) * time.Second,
			ForceManual:   getEnvAsBool("CAPTCHA_FORCE_MANUAL", false),
		},
		Browser: BrowserConfig{
			Headless:     getEnvAsBool("BROWSER_HEADLESS", false),
			UserAgent:    getEnv("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			WindowWidth:  getEnvAsInt("BROWSER_WINDOW_WIDTH", 1920),
			WindowHeight: getEnvAsInt("BROWSER_WINDOW_HEIGHT", 1080),
			StartTimeout: time.Duration(getEnvAsInt("BROWSER_START_TIMEOUT", 30)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Debug: DebugConfig{
			Dir: getEnv("DEBUG_DIR", "debug"),
		},
	}

	// Validate required fields
	if cfg.Portal.NroID == "" {
		return nil, fmt.Errorf("CALF_NRO_ID is required")
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
