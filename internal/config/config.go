package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	defaultCutoffDate = "2025-07-13"

	configPathEnv     = "ASSIGNMENT_PILOT_CONFIG"
	classroomTokenEnv = "CLASSROOM_API_TOKEN"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	smtpUsernameEnv   = "SMTP_USERNAME"
	smtpPasswordEnv   = "SMTP_PASSWORD"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Classroom ClassroomConfig `yaml:"classroom"`
	ChatGPT   ChatGPTConfig   `yaml:"chatgpt"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig locates the on-disk data directory.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// SchedulerConfig defines when the batch should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnce        bool           `yaml:"runOnce"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig carries batch-processing policy.
type PipelineConfig struct {
	// CutoffDate excludes coursework created before this day (YYYY-MM-DD).
	CutoffDate       string `yaml:"cutoffDate"`
	DefaultRecipient string `yaml:"defaultRecipient"`
}

// Cutoff parses the configured cutoff day; malformed values revert to the default.
func (p PipelineConfig) Cutoff() time.Time {
	raw := p.CutoffDate
	if raw == "" {
		raw = defaultCutoffDate
	}
	cutoff, err := time.Parse("2006-01-02", raw)
	if err != nil {
		log.Printf("config: invalid cutoffDate %q, reverting to %s", raw, defaultCutoffDate)
		cutoff, _ = time.Parse("2006-01-02", defaultCutoffDate)
	}
	return cutoff
}

// ClassroomConfig describes the upstream coursework service.
type ClassroomConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Token   string `yaml:"token"`
}

// ChatGPTConfig defines how to contact the generation API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SMTPConfig wires all data required to deliver notification mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// HTTPConfig describes the retrieval API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(classroomTokenEnv); v != "" {
		c.Classroom.Token = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.SMTP.Username = v
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Storage.Dir != "" {
		base.Storage.Dir = override.Storage.Dir
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.RunOnce {
		base.Scheduler.RunOnce = true
	}

	if override.Pipeline.CutoffDate != "" {
		base.Pipeline.CutoffDate = override.Pipeline.CutoffDate
	}
	if override.Pipeline.DefaultRecipient != "" {
		base.Pipeline.DefaultRecipient = override.Pipeline.DefaultRecipient
	}

	if override.Classroom.BaseURL != "" {
		base.Classroom.BaseURL = override.Classroom.BaseURL
	}
	if override.Classroom.Token != "" {
		base.Classroom.Token = override.Classroom.Token
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.SMTP.Host != "" {
		base.SMTP.Host = override.SMTP.Host
	}
	if override.SMTP.Port != 0 {
		base.SMTP.Port = override.SMTP.Port
	}
	if override.SMTP.Username != "" {
		base.SMTP.Username = override.SMTP.Username
	}
	if override.SMTP.Password != "" {
		base.SMTP.Password = override.SMTP.Password
	}
	if override.SMTP.From != "" {
		base.SMTP.From = override.SMTP.From
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Storage:   StorageConfig{Dir: "data"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Pipeline: PipelineConfig{
			CutoffDate:       defaultCutoffDate,
			DefaultRecipient: "default@email.com",
		},
		Classroom: ClassroomConfig{BaseURL: "https://classroom.example.org/v1"},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4",
			APIKey:       "",
			SystemPrompt: "You are an expert academic assistant.",
		},
		SMTP: SMTPConfig{Host: "smtp.gmail.com", Port: 587},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}
