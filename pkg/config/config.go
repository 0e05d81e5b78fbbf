// Package config loads docreport settings from defaults, an optional YAML
// file and DOCREPORT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/benjaminschreck/go-docreport/pkg/docx"
)

// EnvPrefix prefixes every environment override, e.g. DOCREPORT_JIRA_TOKEN.
const EnvPrefix = "DOCREPORT"

// Config contains all configuration options of docreport.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Template   TemplateConfig   `mapstructure:"template"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Jenkins    JenkinsConfig    `mapstructure:"jenkins"`
	Jira       JiraConfig       `mapstructure:"jira"`
	Confluence ConfluenceConfig `mapstructure:"confluence"`
	Letters    LettersConfig    `mapstructure:"letters"`
	Publish    PublishConfig    `mapstructure:"publish"`
}

// LogConfig controls verbosity (debug, info, warn, error, off) and output
// format (json, console).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TemplateConfig locates the report template and the files a run produces.
type TemplateConfig struct {
	// Path is an unpacked template directory or a .docx file.
	Path    string `mapstructure:"path"`
	WorkDir string `mapstructure:"work_dir"`
	Output  string `mapstructure:"output"`
	// Manifest overrides the embedded anchor manifest when set.
	Manifest string `mapstructure:"manifest"`
}

// HTTPConfig tunes the transport shared by all collaborators.
type HTTPConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

// JenkinsConfig addresses the build server and the host serving its test
// reports.
type JenkinsConfig struct {
	Host             string `mapstructure:"host"`
	ReportHost       string `mapstructure:"report_host"`
	Username         string `mapstructure:"username"`
	Token            string `mapstructure:"token"`
	PreferredMachine string `mapstructure:"preferred_machine"`
}

// JiraConfig addresses the issue tracker.
type JiraConfig struct {
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	JQL           string `mapstructure:"jql"`
	SeverityField string `mapstructure:"severity_field"`
}

// ConfluenceConfig addresses the wiki holding the weekly status pages.
type ConfluenceConfig struct {
	URL          string `mapstructure:"url"`
	Token        string `mapstructure:"token"`
	TitlePrefix  string `mapstructure:"title_prefix"`
	Marker       string `mapstructure:"marker"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

// LettersConfig locates the HTML letter templates and their output.
type LettersConfig struct {
	// TemplatesDir overrides the embedded letter templates when set.
	TemplatesDir string `mapstructure:"templates_dir"`
	OutputDir    string `mapstructure:"output_dir"`
}

// PublishConfig enables uploading the finished report to S3.
type PublishConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Template: TemplateConfig{
			Path:    "./template",
			WorkDir: "./tmp_template",
			Output:  "./report.docx",
		},
		HTTP: HTTPConfig{
			Timeout:  30 * time.Second,
			RetryMax: 3,
		},
		Jenkins: JenkinsConfig{
			Host:             "http://rpr.cis.luxoft.com",
			ReportHost:       "https://cis.nas.luxoft.com",
			PreferredMachine: "7900",
		},
		Jira: JiraConfig{
			URL:           "https://luxproject.luxoft.com/jira/",
			JQL:           `project = STVITT AND issuetype = Defect AND status in (Open, "In Progress", Suspended, Resolved, Deferred) AND labels = StreamingSDK`,
			SeverityField: "customfield_12094",
		},
		Confluence: ConfluenceConfig{
			URL:          "https://luxproject.luxoft.com/confluence/",
			TitlePrefix:  "Status Report - ",
			Marker:       "StreamingSDK:",
			LookbackDays: 7,
		},
		Letters: LettersConfig{
			TemplatesDir: "",
			OutputDir:    ".",
		},
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("template.path", d.Template.Path)
	v.SetDefault("template.work_dir", d.Template.WorkDir)
	v.SetDefault("template.output", d.Template.Output)
	v.SetDefault("template.manifest", d.Template.Manifest)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.retry_max", d.HTTP.RetryMax)

	v.SetDefault("jenkins.host", d.Jenkins.Host)
	v.SetDefault("jenkins.report_host", d.Jenkins.ReportHost)
	v.SetDefault("jenkins.username", d.Jenkins.Username)
	v.SetDefault("jenkins.token", d.Jenkins.Token)
	v.SetDefault("jenkins.preferred_machine", d.Jenkins.PreferredMachine)

	v.SetDefault("jira.url", d.Jira.URL)
	v.SetDefault("jira.token", d.Jira.Token)
	v.SetDefault("jira.jql", d.Jira.JQL)
	v.SetDefault("jira.severity_field", d.Jira.SeverityField)

	v.SetDefault("confluence.url", d.Confluence.URL)
	v.SetDefault("confluence.token", d.Confluence.Token)
	v.SetDefault("confluence.title_prefix", d.Confluence.TitlePrefix)
	v.SetDefault("confluence.marker", d.Confluence.Marker)
	v.SetDefault("confluence.lookback_days", d.Confluence.LookbackDays)

	v.SetDefault("letters.templates_dir", d.Letters.TemplatesDir)
	v.SetDefault("letters.output_dir", d.Letters.OutputDir)

	v.SetDefault("publish.enabled", d.Publish.Enabled)
	v.SetDefault("publish.bucket", d.Publish.Bucket)
	v.SetDefault("publish.prefix", d.Publish.Prefix)
	v.SetDefault("publish.region", d.Publish.Region)
	v.SetDefault("publish.profile", d.Publish.Profile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.Log.Level] {
		return errors.New("invalid log level: " + c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errors.New("invalid log format: " + c.Log.Format)
	}

	if c.Template.Path == "" || c.Template.WorkDir == "" || c.Template.Output == "" {
		return errors.New("template path, work_dir and output are required")
	}
	if err := docx.CheckLayout(c.Template.Path, c.Template.WorkDir, c.Template.Output); err != nil {
		return fmt.Errorf("invalid template layout: %w", err)
	}

	if c.HTTP.Timeout < 0 {
		return errors.New("http timeout cannot be negative")
	}
	if c.HTTP.RetryMax < 0 {
		return errors.New("http retry_max cannot be negative")
	}

	if c.Confluence.LookbackDays < 0 {
		return errors.New("confluence lookback_days cannot be negative")
	}

	if c.Publish.Enabled && c.Publish.Bucket == "" {
		return errors.New("publish bucket is required when publishing is enabled")
	}

	return nil
}
