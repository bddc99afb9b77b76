package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/promoter-slots/pkg/db"
	"github.com/jakechorley/promoter-slots/pkg/utils/validation"
)

const (
	DefaultTimeZone               = "America/Mexico_City"
	DefaultCalendarID             = "primary"
	DefaultProviderTimeoutSeconds = 30
	DefaultLogsDir                = "logs"
)

// DefaultSchedule overrides the bootstrap schedule config
type DefaultSchedule struct {
	Name           string                `yaml:"name,omitempty"`
	Months         int                   `yaml:"months,omitempty" validate:"omitempty,min=1,max=24"`
	WeekDays       []int                 `yaml:"weekDays,omitempty" validate:"omitempty,dive,min=1,max=7"`
	TimeSlots      []db.TimeSlotTemplate `yaml:"timeSlots,omitempty" validate:"omitempty,dive"`
	WeeksInAdvance int                   `yaml:"weeksInAdvance,omitempty" validate:"omitempty,min=1,max=12"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL            string          `yaml:"databaseURL" validate:"required"`
	TimeZone               string          `yaml:"timeZone" validate:"required,timezone"`
	CalendarID             string          `yaml:"calendarID" validate:"required"`
	GmailSender            string          `yaml:"gmailSender,omitempty" validate:"omitempty,email"`
	CandidateSheetID       string          `yaml:"candidateSheetID,omitempty"`
	CandidatesTab          string          `yaml:"candidatesTab,omitempty" validate:"required_with=CandidateSheetID"`
	AttendanceSheetID      string          `yaml:"attendanceSheetID,omitempty"`
	ProviderTimeoutSeconds int             `yaml:"providerTimeoutSeconds,omitempty" validate:"min=1,max=300"`
	LogsDir                string          `yaml:"logsDir,omitempty"`
	DefaultSchedule        DefaultSchedule `yaml:"defaultSchedule,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validation.Validator()
}

// Load loads and validates the configuration from cupos_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the .env files and the configuration for an environment.
// For example, env="dev" looks for ".env.dev" and "cupos_config.dev.yaml", falling back
// to ".env" and "cupos_config.yaml".
func LoadWithEnv(env string) (*Config, error) {
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, t := range cfg.DefaultSchedule.TimeSlots {
		if validation.MinutesOfDay(t.StartTime) >= validation.MinutesOfDay(t.EndTime) {
			return fmt.Errorf("defaultSchedule.timeSlots[%d]: start time %s must be before end time %s", i, t.StartTime, t.EndTime)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.TimeZone == "" {
		cfg.TimeZone = DefaultTimeZone
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = DefaultCalendarID
	}
	if cfg.ProviderTimeoutSeconds == 0 {
		cfg.ProviderTimeoutSeconds = DefaultProviderTimeoutSeconds
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = DefaultLogsDir
	}
}

// loadDotEnv loads .env.<env> and .env when present. Variables already set win.
func loadDotEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = []string{".env." + env, ".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	candidates := []string{"cupos_config.yaml"}
	if env != "" {
		candidates = []string{"cupos_config." + env + ".yaml", "cupos_config.yaml"}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, name := range candidates {
		// Check current directory
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}

		// Check home directory
		homePath := filepath.Join(homeDir, name)
		if _, err := os.Stat(homePath); err == nil {
			return homePath, nil
		}
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
