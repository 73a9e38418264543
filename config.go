// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (every knob the engine uses) and a
// loader that layers, in increasing priority: built-in defaults, an
// optional YAML file (-config path.yml), then process environment
// variables. The .env file is read by loadBotEnv() (see env.go) so local
// runs don't need shell exports.
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime knob the engine uses.
type Config struct {
	DB struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"db"`

	Broker struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"broker"`

	Trading struct {
		Symbol                string          `yaml:"symbol"`
		PaperMode             bool            `yaml:"paper_mode"`
		AccountBalance        decimal.Decimal `yaml:"account_balance"`
		RiskPerTrade          decimal.Decimal `yaml:"risk_per_trade"`
		DailyLossLimit        decimal.Decimal `yaml:"daily_loss_limit"`
		ConsecutiveLossLimit  int             `yaml:"consecutive_loss_limit"`
		MinBalance            decimal.Decimal `yaml:"min_balance"`
		MaxTradeDurationHours int             `yaml:"max_trade_duration_hours"`
		Leverage              decimal.Decimal `yaml:"leverage"`
	} `yaml:"trading"`

	Oracle struct {
		Endpoint           string  `yaml:"endpoint"`
		Model              string  `yaml:"model"`
		Temperature        float64 `yaml:"temperature"`
		TimeoutSeconds     int     `yaml:"timeout_s"`
		ConfidenceThreshold int    `yaml:"confidence_threshold"`
	} `yaml:"oracle"`

	System struct {
		LogLevel      string `yaml:"log_level"`
		EmergencyStop bool   `yaml:"emergency_stop"`
	} `yaml:"system"`

	// Ops surface required to run the operator HTTP API / metrics server.
	Port int `yaml:"port"`
}

// defaultConfig returns every default the engine starts with.
func defaultConfig() Config {
	var c Config
	c.Trading.Symbol = "BTC-USD"
	c.Trading.PaperMode = true
	c.Trading.AccountBalance = decimal.NewFromInt(1000)
	c.Trading.RiskPerTrade = decimal.NewFromFloat(0.01)
	c.Trading.DailyLossLimit = decimal.NewFromFloat(0.03)
	c.Trading.ConsecutiveLossLimit = 3
	c.Trading.MinBalance = decimal.NewFromInt(100)
	c.Trading.MaxTradeDurationHours = 72
	c.Trading.Leverage = decimal.NewFromInt(1)
	c.Oracle.Temperature = 0.3
	c.Oracle.TimeoutSeconds = 30
	c.Oracle.ConfidenceThreshold = 70
	c.System.LogLevel = "info"
	c.Port = 8080
	return c
}

// loadConfigFile layers an optional YAML file over the defaults.
func loadConfigFile(c *Config, path string) error {
	if path == "" {
		return nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(bs, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnvOverrides layers process environment variables over c, the
// highest-priority configuration source.
func applyEnvOverrides(c *Config) {
	c.DB.Host = getEnv("DB_HOST", c.DB.Host)
	c.DB.Port = getEnvInt("DB_PORT", c.DB.Port)
	c.DB.Name = getEnv("DB_NAME", c.DB.Name)
	c.DB.User = getEnv("DB_USER", c.DB.User)
	c.DB.Password = getEnv("DB_PASSWORD", c.DB.Password)

	c.Broker.APIKey = getEnv("BROKER_API_KEY", c.Broker.APIKey)
	c.Broker.APISecret = getEnv("BROKER_API_SECRET", c.Broker.APISecret)

	c.Trading.Symbol = getEnv("SYMBOL", c.Trading.Symbol)
	c.Trading.PaperMode = getEnvBool("PAPER_MODE", c.Trading.PaperMode)
	c.Trading.AccountBalance = getEnvDecimal("ACCOUNT_BALANCE", c.Trading.AccountBalance)
	c.Trading.RiskPerTrade = getEnvDecimal("RISK_PER_TRADE", c.Trading.RiskPerTrade)
	c.Trading.DailyLossLimit = getEnvDecimal("DAILY_LOSS_LIMIT", c.Trading.DailyLossLimit)
	c.Trading.ConsecutiveLossLimit = getEnvInt("CONSECUTIVE_LOSS_LIMIT", c.Trading.ConsecutiveLossLimit)
	c.Trading.MinBalance = getEnvDecimal("MIN_BALANCE", c.Trading.MinBalance)
	c.Trading.MaxTradeDurationHours = getEnvInt("MAX_TRADE_DURATION_HOURS", c.Trading.MaxTradeDurationHours)
	c.Trading.Leverage = getEnvDecimal("LEVERAGE", c.Trading.Leverage)

	c.Oracle.Endpoint = getEnv("ORACLE_ENDPOINT", c.Oracle.Endpoint)
	c.Oracle.Model = getEnv("ORACLE_MODEL", c.Oracle.Model)
	c.Oracle.Temperature = getEnvFloat("ORACLE_TEMPERATURE", c.Oracle.Temperature)
	c.Oracle.TimeoutSeconds = getEnvInt("ORACLE_TIMEOUT_S", c.Oracle.TimeoutSeconds)
	c.Oracle.ConfidenceThreshold = getEnvInt("ORACLE_CONFIDENCE_THRESHOLD", c.Oracle.ConfidenceThreshold)

	c.System.LogLevel = getEnv("LOG_LEVEL", c.System.LogLevel)
	c.System.EmergencyStop = getEnvBool("EMERGENCY_STOP", c.System.EmergencyStop)

	c.Port = getEnvInt("PORT", c.Port)
}

// loadConfig builds the final Config: defaults < YAML file < environment,
// then validates it. A validation failure is fatal at startup only.
func loadConfig(yamlPath string) (Config, error) {
	c := defaultConfig()
	if err := loadConfigFile(&c, yamlPath); err != nil {
		return c, err
	}
	applyEnvOverrides(&c)
	if err := validateConfig(c); err != nil {
		return c, err
	}
	return c, nil
}

// validateConfig rejects an unusable configuration; fatal at startup only.
func validateConfig(c Config) error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Trading.AccountBalance.LessThan(c.Trading.MinBalance) {
		return fmt.Errorf("trading.account_balance (%s) below trading.min_balance (%s)",
			c.Trading.AccountBalance, c.Trading.MinBalance)
	}
	if !c.Trading.PaperMode && (c.Broker.APIKey == "" || c.Broker.APISecret == "") {
		return fmt.Errorf("broker.api_key/api_secret required when paper_mode=false")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host/db.name required")
	}
	if c.Oracle.ConfidenceThreshold < 0 || c.Oracle.ConfidenceThreshold > 100 {
		return fmt.Errorf("oracle.confidence_threshold must be in [0,100]")
	}
	return nil
}

// dsn builds the pgx connection string from DB config.
func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.DB.Host, c.DB.Port, c.DB.Name, c.DB.User, c.DB.Password)
}
