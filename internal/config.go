package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/generate"
	"github.com/starford/quire/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Editor    EditorConfig      `yaml:"editor"`
	Generator GeneratorConfig   `yaml:"generator"`
	Export    ExportConfig      `yaml:"export"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Generator.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the note vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// cssSize accepts a CSS length such as 2em, 18px or 1.25rem.
var cssSize = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?(px|em|rem|pt|%)$`)

// EditorConfig holds presentation sizes and the autosave delay.
type EditorConfig struct {
	H1Size        string        `yaml:"h1_size"`
	H2Size        string        `yaml:"h2_size"`
	ParagraphSize string        `yaml:"paragraph_size"`
	SaveDebounce  time.Duration `yaml:"save_debounce"`
}

// Validate validates the editor configuration. Empty sizes fall back to the
// client's defaults.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.H1Size, validation.Match(cssSize)),
		validation.Field(&c.H2Size, validation.Match(cssSize)),
		validation.Field(&c.ParagraphSize, validation.Match(cssSize)),
		validation.Field(&c.SaveDebounce, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// Settings returns the sizes as editor settings.
func (c *EditorConfig) Settings() models.EditorSettings {
	return models.EditorSettings{H1Size: c.H1Size, H2Size: c.H2Size, ParagraphSize: c.ParagraphSize}
}

// GeneratorConfig selects the language model backend.
type GeneratorConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = generate.ProviderNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(generate.ProviderNone, generate.ProviderAnthropic, generate.ProviderOpenAI, generate.ProviderGemini)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryAttempts, validation.Min(0), validation.Max(10)),
	); err != nil {
		return err
	}
	if c.Provider != generate.ProviderNone && c.APIKey == "" {
		return fmt.Errorf("generator: provider is %q but api_key is empty", c.Provider)
	}
	return nil
}

// Config converts the section to the generate factory's config.
func (c *GeneratorConfig) Config() generate.Config {
	return generate.Config{
		Provider:      c.Provider,
		Model:         c.Model,
		APIKey:        c.APIKey,
		Timeout:       c.Timeout,
		RetryAttempts: c.RetryAttempts,
	}
}

// ExportConfig holds where standalone pages are written. An empty Dir
// disables writing exports.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./quire.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			H1Size:        "2em",
			H2Size:        "1.5em",
			ParagraphSize: "1em",
			SaveDebounce:  2 * time.Second,
		},
		Generator: GeneratorConfig{
			Provider:      generate.ProviderNone,
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
		},
		Export: ExportConfig{
			Dir: "./exports",
		},
	}
}
