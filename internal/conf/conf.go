package conf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the config structure.
type Config struct {
	Server    Server              `yaml:"server"`
	Routes    Routes              `yaml:"routes"`
	Database  Database            `yaml:"database"`
	Pending   Pending             `yaml:"pending"`
	Providers map[string]Provider `yaml:"providers"`
	Token     Token               `yaml:"token"`
	Users     Users               `yaml:"users"`
}

// Server is the HTTP server config.
type Server struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"base_url"`
}

// Routes controls the route prefix and the browser-facing redirect targets.
type Routes struct {
	Prefix              string `yaml:"prefix"`
	RedirectAfterLogin  string `yaml:"redirect_after_login"`
	RedirectAfterLogout string `yaml:"redirect_after_logout"`
	LoginURL            string `yaml:"login_url"`
	FrontendURL         string `yaml:"frontend_url"`
}

// Database selects the account store backend.
type Database struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// Duration is a time.Duration that unmarshals from yaml strings like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Pending selects the pre-redirect pending-field store backend.
type Pending struct {
	Store         string   `yaml:"store"` // "memory" or "redis"
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	TTL           Duration `yaml:"ttl"` // session lifetime; pending entries expire with it
}

// Provider is one external identity provider's credentials.
type Provider struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"` // Optional: if not set, auto-constructed from server.base_url
	Scopes       []string `yaml:"scopes"`
	Tenant       string   `yaml:"tenant"` // microsoft only; defaults to "common"
}

// GetRedirectURL returns the OAuth callback URL for a provider.
// If RedirectURL is explicitly configured, use it.
// Otherwise, construct from server base_url + route prefix + callback path.
func (p Provider) GetRedirectURL(name, serverBaseURL, prefix string) string {
	if p.RedirectURL != "" {
		return p.RedirectURL
	}
	return serverBaseURL + prefix + "/" + name + "/callback"
}

// Token selects and configures the credential issuance strategy.
type Token struct {
	Strategy   string   `yaml:"strategy"` // "opaque" or "jwt"
	SigningKey string   `yaml:"signing_key"`
	Lifetime   Duration `yaml:"lifetime"`
	Scopes     []string `yaml:"scopes"`
}

// Users holds the field-mapping rules, defaults, and the required-fields
// schema used when constructing accounts from provider assertions.
type Users struct {
	FieldMapping   map[string][]MappingRule `yaml:"field_mapping"`
	NameHandling   NameHandling             `yaml:"name_handling"`
	Defaults       map[string]string        `yaml:"defaults"`
	Transformation map[string]string        `yaml:"transformations"` // field -> "identity" | "email_domain"
	Renames        map[string]string        `yaml:"renames"`
	RequiredFields []RequiredField          `yaml:"required_fields"`
}

// MappingRule maps one external attribute to one internal attribute.
type MappingRule struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// NameHandling controls whether the provider display name is stored whole
// or split into first/remainder.
type NameHandling struct {
	Mode        string `yaml:"mode"` // "single" or "split"
	SingleField string `yaml:"single_field"`
	FirstField  string `yaml:"first_field"`
	LastField   string `yaml:"last_field"`
}

// AccountColumns is the closed set of stored user attributes. Mapping
// destinations, rename targets, default keys, and required-field names must
// all land in this set; Validate enforces it so a typo or an unsupported
// rename fails at startup instead of silently dropping values at the store.
var AccountColumns = []string{
	"email",
	"name",
	"first_name",
	"last_name",
	"avatar",
	"role",
	"status",
	"password",
	"email_verified_at",
	"google_id",
	"google_token",
	"google_refresh_token",
	"microsoft_id",
	"microsoft_token",
	"microsoft_refresh_token",
}

var accountColumnSet = func() map[string]bool {
	m := make(map[string]bool, len(AccountColumns))
	for _, c := range AccountColumns {
		m[c] = true
	}
	return m
}()

// IsAccountColumn reports whether name is a stored user attribute.
func IsAccountColumn(name string) bool { return accountColumnSet[name] }

// RequiredField describes one extra field collected from the user before
// the provider redirect.
type RequiredField struct {
	Name     string            `yaml:"name"`
	Label    string            `yaml:"label"`
	Type     string            `yaml:"type"` // "text" or "select"
	Required bool              `yaml:"required"`
	Options  map[string]string `yaml:"options"`
	Default  string            `yaml:"default"`
}

// Load loads config from file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Routes.Prefix == "" {
		c.Routes.Prefix = "/social-auth"
	}
	if c.Routes.RedirectAfterLogin == "" {
		c.Routes.RedirectAfterLogin = "/dashboard"
	}
	if c.Routes.RedirectAfterLogout == "" {
		c.Routes.RedirectAfterLogout = "/"
	}
	if c.Routes.LoginURL == "" {
		c.Routes.LoginURL = c.Routes.Prefix + "/login"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/users.db"
	}
	if c.Pending.Store == "" {
		c.Pending.Store = "memory"
	}
	if c.Pending.TTL == 0 {
		c.Pending.TTL = Duration(30 * time.Minute)
	}
	if c.Token.Strategy == "" {
		c.Token.Strategy = "opaque"
	}
	if c.Token.Lifetime == 0 {
		c.Token.Lifetime = Duration(time.Hour)
	}
	if c.Users.NameHandling.Mode == "" {
		c.Users.NameHandling.Mode = "single"
	}
	if c.Users.NameHandling.SingleField == "" {
		c.Users.NameHandling.SingleField = "name"
	}
	if c.Users.NameHandling.FirstField == "" {
		c.Users.NameHandling.FirstField = "first_name"
	}
	if c.Users.NameHandling.LastField == "" {
		c.Users.NameHandling.LastField = "last_name"
	}
}

// applyEnv overrides config values from environment variables.
// Provider secrets in particular should come from the environment rather
// than a checked-in file.
func (c *Config) applyEnv() {
	if baseURL := os.Getenv("SERVER_BASE_URL"); baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if key := os.Getenv("TOKEN_SIGNING_KEY"); key != "" {
		c.Token.SigningKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Pending.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Pending.RedisPassword = pw
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	for name, p := range c.Providers {
		upper := strings.ToUpper(name)
		if id := os.Getenv(upper + "_CLIENT_ID"); id != "" {
			p.ClientID = id
		}
		if secret := os.Getenv(upper + "_CLIENT_SECRET"); secret != "" {
			p.ClientSecret = secret
		}
		if redirect := os.Getenv(upper + "_REDIRECT_URI"); redirect != "" {
			p.RedirectURL = redirect
		}
		c.Providers[name] = p
	}
}

// Validate checks the parts of the config that must fail at startup rather
// than per request: provider credentials, token signing material, the
// field-mapping tables, and backend selectors.
func (c *Config) Validate() error {
	for name, p := range c.Providers {
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("provider %q: client_id and client_secret are required", name)
		}
	}

	switch c.Token.Strategy {
	case "opaque":
	case "jwt":
		if c.Token.SigningKey == "" {
			return fmt.Errorf("token strategy %q requires a signing key", c.Token.Strategy)
		}
	default:
		return fmt.Errorf("unknown token strategy %q", c.Token.Strategy)
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %q requires a dsn", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Pending.Store {
	case "memory":
	case "redis":
		if c.Pending.RedisAddr == "" {
			return fmt.Errorf("pending store %q requires redis_addr", c.Pending.Store)
		}
	default:
		return fmt.Errorf("unknown pending store %q", c.Pending.Store)
	}

	switch c.Users.NameHandling.Mode {
	case "single", "split":
	default:
		return fmt.Errorf("unknown name handling mode %q", c.Users.NameHandling.Mode)
	}

	if err := c.validateRenames(); err != nil {
		return err
	}

	// resolve maps an attribute through the rename table to the column it
	// is actually stored under.
	resolve := func(attr string) string {
		if to, ok := c.Users.Renames[attr]; ok {
			return to
		}
		return attr
	}

	var nameFields []string
	if c.Users.NameHandling.Mode == "split" {
		nameFields = []string{c.Users.NameHandling.FirstField, c.Users.NameHandling.LastField}
	} else {
		nameFields = []string{c.Users.NameHandling.SingleField}
	}
	for _, f := range nameFields {
		if !IsAccountColumn(resolve(f)) {
			return fmt.Errorf("name handling field %q is not a stored attribute", f)
		}
	}

	for provider, rules := range c.Users.FieldMapping {
		for _, rule := range rules {
			if rule.Source == "" || rule.Destination == "" {
				return fmt.Errorf("field mapping for %q: source and destination are required", provider)
			}
			// In split mode the name rule writes the name-handling fields,
			// which are validated above.
			if rule.Source == "name" && c.Users.NameHandling.Mode == "split" {
				continue
			}
			if !IsAccountColumn(resolve(rule.Destination)) {
				return fmt.Errorf("field mapping for %q: destination %q is not a stored attribute", provider, rule.Destination)
			}
		}
	}

	for key := range c.Users.Defaults {
		if !IsAccountColumn(resolve(key)) {
			return fmt.Errorf("default for %q: not a stored attribute", key)
		}
	}

	for field, kind := range c.Users.Transformation {
		switch kind {
		case "identity", "email_domain":
		default:
			return fmt.Errorf("field %q: unknown transformation %q", field, kind)
		}
	}

	for _, f := range c.Users.RequiredFields {
		if f.Name == "" {
			return fmt.Errorf("required field with empty name")
		}
		if !IsAccountColumn(resolve(f.Name)) {
			return fmt.Errorf("required field %q: not a stored attribute", f.Name)
		}
		switch f.Type {
		case "", "text", "select":
		default:
			return fmt.Errorf("required field %q: unknown type %q", f.Name, f.Type)
		}
	}

	return nil
}

// validateRenames keeps the rename table a flat, unambiguous relocation:
// targets must be stored columns, no self-renames, no chains, and no two
// sources sharing a target. Anything else would make attribute placement
// depend on map iteration order.
func (c *Config) validateRenames() error {
	targets := make(map[string]string, len(c.Users.Renames))
	for from, to := range c.Users.Renames {
		if from == to {
			return fmt.Errorf("rename %q maps to itself", from)
		}
		if !IsAccountColumn(to) {
			return fmt.Errorf("rename %q -> %q: target is not a stored attribute", from, to)
		}
		if _, ok := c.Users.Renames[to]; ok {
			return fmt.Errorf("rename %q -> %q: chained renames are not supported", from, to)
		}
		if prev, ok := targets[to]; ok {
			return fmt.Errorf("renames %q and %q share target %q", prev, from, to)
		}
		targets[to] = from
	}
	return nil
}
