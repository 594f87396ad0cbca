package internal

import (
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jsondb/pkg/jsondb"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Naming policies.
const (
	NamingCamel    = "camel"
	NamingDeclared = "declared"
)

// Loop handling modes.
const (
	LoopsIgnore = "ignore"
	LoopsError  = "error"
)

var (
	kindRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
	fileRe = regexp.MustCompile(`^[^/\\]+\.json$`)
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
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

// StoreConfig holds the record store configuration.
//
// Kinds maps a record kind to its collection file name. Kinds that are not
// listed use "<kind>.json".
type StoreConfig struct {
	Path   string            `yaml:"path"`
	Naming string            `yaml:"naming"`
	Loops  string            `yaml:"loops"`
	Indent bool              `yaml:"indent"`
	Kinds  map[string]string `yaml:"kinds"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Naming == "" {
		c.Naming = NamingCamel
	}
	if c.Loops == "" {
		c.Loops = LoopsIgnore
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Naming, validation.In(NamingCamel, NamingDeclared)),
		validation.Field(&c.Loops, validation.In(LoopsIgnore, LoopsError)),
	); err != nil {
		return err
	}
	for kind, file := range c.Kinds {
		if !kindRe.MatchString(kind) {
			return fmt.Errorf("store: invalid kind %q", kind)
		}
		if !fileRe.MatchString(file) {
			return fmt.Errorf("store: kind %q: invalid file name %q", kind, file)
		}
	}
	return nil
}

// Codec returns the serializer described by the configuration.
func (c *StoreConfig) Codec() *jsondb.Codec {
	codec := &jsondb.Codec{Indent: c.Indent}
	if c.Naming == NamingDeclared {
		codec.Naming = jsondb.AsDeclared
	}
	if c.Loops == LoopsError {
		codec.Loops = jsondb.ErrorOnLoop
	}
	return codec
}

// Options returns the store options described by the configuration.
func (c *StoreConfig) Options() []jsondb.Option {
	opts := []jsondb.Option{jsondb.WithCodec(c.Codec())}
	for kind, file := range c.Kinds {
		opts = append(opts, jsondb.WithKind(kind, file))
	}
	return opts
}

// CatalogConfig holds the SQLite catalog database configuration.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Path:   "App_Data/JsonDb",
			Naming: NamingCamel,
			Loops:  LoopsIgnore,
			Indent: true,
		},
		Catalog: CatalogConfig{
			Path: "App_Data/jsondb-catalog.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
