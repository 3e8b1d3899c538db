package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// DBConnParam describes one PostgreSQL database.
type DBConnParam struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

type NeonParam struct {
	APIKey    string `toml:"api_key"`
	ProjectID string `toml:"project_id"`
	RoleName  string `toml:"role_name"`
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`
}

type ConfigParam struct {
	ServerPort           string      `toml:"server_port"`
	LogLevel             string      `toml:"log_level"`
	Production           bool        `toml:"production"`
	HandleCORS           bool        `toml:"handle_cors"`
	CORSAllowedOrigins   []string    `toml:"cors_allowed_origins"`
	JWTSecretKey         string      `toml:"jwt_secret_key"`
	AccessTokenValidity  string      `toml:"access_token_validity"`
	RefreshTokenValidity string      `toml:"refresh_token_validity"`
	AdminAPIKey          string      `toml:"admin_api_key"`
	FieldEncryptionKey   string      `toml:"field_encryption_key"`
	TenantDevMode        bool        `toml:"tenant_dev_mode"`
	ControlDB            DBConnParam `toml:"control_db"`
	DevTenantDB          DBConnParam `toml:"dev_tenant_db"`
	Neon                 NeonParam   `toml:"neon"`
}

const (
	DefaultNeonBaseURL  = "https://console.neon.tech/api/v2"
	DefaultNeonTimeout  = 30 * time.Second
	DefaultTenantDBPort = 5432
)

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the active configuration. Used by tests and the CLI.
func SetConfig(c *ConfigParam) {
	cfg = c
}

func defaultConfig() *ConfigParam {
	return &ConfigParam{
		ServerPort:           "8000",
		LogLevel:             "info",
		HandleCORS:           true,
		CORSAllowedOrigins:   []string{"http://localhost:3000"},
		AccessTokenValidity:  "1h",
		RefreshTokenValidity: "7d",
		ControlDB: DBConnParam{
			Host:    "localhost",
			Port:    5432,
			User:    "deskpro",
			DBName:  "deskpro",
			SSLMode: "disable",
		},
		Neon: NeonParam{
			BaseURL:  DefaultNeonBaseURL,
			RoleName: "neondb_owner",
			Timeout:  "30s",
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. ${VAR} references
// in the file are expanded from the environment, so secrets need not be
// written to disk.
func LoadConfig(filename string) error {
	if filename == "" {
		cfg = defaultConfig()
		return nil
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	return LoadConfigFromString(string(content))
}

func LoadConfigFromString(content string) error {
	cp := defaultConfig()
	if _, err := toml.Decode(os.ExpandEnv(content), cp); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	if err := cp.validate(); err != nil {
		return err
	}
	cfg = cp
	return nil
}

func (c *ConfigParam) validate() error {
	if _, err := ParseTokenDuration(c.AccessTokenValidity); err != nil {
		return fmt.Errorf("access_token_validity: %v", err)
	}
	if _, err := ParseTokenDuration(c.RefreshTokenValidity); err != nil {
		return fmt.Errorf("refresh_token_validity: %v", err)
	}
	if c.Neon.Timeout != "" {
		if _, err := time.ParseDuration(c.Neon.Timeout); err != nil {
			return fmt.Errorf("neon.timeout: %v", err)
		}
	}
	if c.Production {
		if c.JWTSecretKey == "" || c.FieldEncryptionKey == "" || c.AdminAPIKey == "" {
			return fmt.Errorf("jwt_secret_key, field_encryption_key and admin_api_key are required in production")
		}
		if c.TenantDevMode {
			return fmt.Errorf("tenant_dev_mode cannot be enabled in production")
		}
	}
	return nil
}

func (c *ConfigParam) AccessTokenTTL() time.Duration {
	d, _ := ParseTokenDuration(c.AccessTokenValidity)
	return d
}

func (c *ConfigParam) RefreshTokenTTL() time.Duration {
	d, _ := ParseTokenDuration(c.RefreshTokenValidity)
	return d
}

func (c *ConfigParam) NeonTimeout() time.Duration {
	if c.Neon.Timeout == "" {
		return DefaultNeonTimeout
	}
	d, err := time.ParseDuration(c.Neon.Timeout)
	if err != nil || d <= 0 {
		return DefaultNeonTimeout
	}
	return d
}

func ParseTokenDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	var duration time.Duration
	switch unit {
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "h":
		duration = time.Duration(value) * time.Hour
	case "m":
		duration = time.Duration(value) * time.Minute
	case "y":
		// 1 year = 365 days
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

func init() {
	err := LoadConfig("")
	if err != nil {
		panic(err)
	}
}
