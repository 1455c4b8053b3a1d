package biz

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"social-auth-service/internal/conf"
)

// Mapper turns an ExternalIdentity into the attribute map that is persisted
// for a new account. The rule tables come from configuration and are
// immutable after construction. Prepare is deterministic for a given
// identity and rule set: the clock and the secret generator are injected, so
// tests can pin them.
type Mapper struct {
	cfg    conf.Users
	now    func() time.Time
	secret func() string
}

// MapperOption customizes a Mapper.
type MapperOption func(*Mapper)

// WithClock fixes the timestamp source used for "now" defaults and the
// email-verification attribute.
func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) { m.now = now }
}

// WithSecretGenerator fixes the generator behind "auto_generated" defaults
// and the password placeholder.
func WithSecretGenerator(gen func() string) MapperOption {
	return func(m *Mapper) { m.secret = gen }
}

// NewMapper builds a Mapper from the users section of the configuration.
func NewMapper(cfg conf.Users, opts ...MapperOption) *Mapper {
	m := &Mapper{
		cfg:    cfg,
		now:    time.Now,
		secret: generatePassword,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// generatePassword returns a bcrypt hash of a fresh random secret. The
// plaintext is discarded: the placeholder only exists so the account row has
// a password column nobody can log in with.
func generatePassword() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	raw := base64.RawURLEncoding.EncodeToString(b)
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt only fails on oversized input; raw is 32 bytes.
		return raw
	}
	return string(hash)
}

// Well-known rule sources. A mapping rule's Source names one of these; its
// Destination names the internal attribute that receives the value.
const (
	srcName         = "name"
	srcEmail        = "email"
	srcAvatar       = "avatar"
	srcID           = "id"
	srcToken        = "token"
	srcRefreshToken = "refresh_token"
)

// defaultRules is the mapping used for providers with no configured rule
// set: store everything under conventional provider-qualified names.
func defaultRules(provider string) []conf.MappingRule {
	return []conf.MappingRule{
		{Source: srcName, Destination: "name"},
		{Source: srcEmail, Destination: "email"},
		{Source: srcAvatar, Destination: "avatar"},
		{Source: srcID, Destination: provider + "_id"},
		{Source: srcToken, Destination: provider + "_token"},
		{Source: srcRefreshToken, Destination: provider + "_refresh_token"},
	}
}

func (m *Mapper) rules(provider string) []conf.MappingRule {
	if rules, ok := m.cfg.FieldMapping[provider]; ok && len(rules) > 0 {
		return rules
	}
	return defaultRules(provider)
}

// Prepare builds the full attribute map for creating an account from an
// identity. Steps run in a fixed order: configured mapping pairs (with name
// handling), then the always-present common attributes, then defaults for
// keys still missing, then transformations, then renames last so they apply
// to the output of every prior step.
func (m *Mapper) Prepare(identity *ExternalIdentity, provider string) map[string]any {
	attrs := make(map[string]any)

	for _, rule := range m.rules(provider) {
		m.applyRule(attrs, rule, identity)
	}

	// Common attributes exist on every created account regardless of the
	// mapping table.
	if _, ok := attrs["email"]; !ok {
		attrs["email"] = identity.Email
	}
	if _, ok := attrs["avatar"]; !ok && identity.AvatarURL != "" {
		attrs["avatar"] = identity.AvatarURL
	}
	if _, ok := attrs["email_verified_at"]; !ok {
		attrs["email_verified_at"] = m.now()
	}
	if _, ok := attrs["password"]; !ok {
		attrs["password"] = m.secret()
	}

	for key, val := range m.cfg.Defaults {
		if _, ok := attrs[key]; !ok {
			attrs[key] = m.resolveDefault(val)
		}
	}

	m.applyTransformations(attrs)
	m.applyRenames(attrs)
	return attrs
}

// Refresh builds the attribute subset written when an existing account logs
// in again through a provider: the provider linkage (external id and
// tokens) and the avatar. Profile fields the user may have edited are left
// alone.
func (m *Mapper) Refresh(identity *ExternalIdentity, provider string) map[string]any {
	attrs := make(map[string]any)
	for _, rule := range m.rules(provider) {
		switch rule.Source {
		case srcID, srcToken, srcRefreshToken, srcAvatar:
			m.applyRule(attrs, rule, identity)
		}
	}
	// A refresh token is only returned on first consent; an empty one must
	// not clobber the stored value.
	for key, val := range attrs {
		if s, ok := val.(string); ok && s == "" {
			delete(attrs, key)
		}
	}
	m.applyTransformations(attrs)
	m.applyRenames(attrs)
	return attrs
}

func (m *Mapper) applyRule(attrs map[string]any, rule conf.MappingRule, identity *ExternalIdentity) {
	switch rule.Source {
	case srcName:
		m.applyName(attrs, rule, identity.DisplayName)
	case srcEmail:
		attrs[rule.Destination] = identity.Email
	case srcAvatar:
		attrs[rule.Destination] = identity.AvatarURL
	case srcID:
		attrs[rule.Destination] = identity.ExternalID
	case srcToken:
		attrs[rule.Destination] = identity.AccessToken
	case srcRefreshToken:
		if identity.RefreshToken != "" {
			attrs[rule.Destination] = identity.RefreshToken
		}
	}
}

// applyName implements the two name-handling modes. Split tokenizes on
// whitespace runs: "Jane Q Public" becomes first "Jane", last "Q Public";
// a single token leaves the last field empty. Surrounding and repeated
// whitespace never leaks into the stored fields.
func (m *Mapper) applyName(attrs map[string]any, rule conf.MappingRule, displayName string) {
	nh := m.cfg.NameHandling
	if nh.Mode == "split" {
		parts := strings.Fields(displayName)
		first, last := "", ""
		if len(parts) > 0 {
			first = parts[0]
			last = strings.Join(parts[1:], " ")
		}
		attrs[nh.FirstField] = first
		attrs[nh.LastField] = last
		return
	}
	dest := rule.Destination
	if dest == "" {
		dest = nh.SingleField
	}
	attrs[dest] = displayName
}

// ProcessedDefaults returns the configured default table with its special
// tokens resolved and renames applied, ready to overlay on a create
// payload.
func (m *Mapper) ProcessedDefaults() map[string]any {
	out := make(map[string]any, len(m.cfg.Defaults))
	for key, val := range m.cfg.Defaults {
		out[key] = m.resolveDefault(val)
	}
	m.applyRenames(out)
	return out
}

func (m *Mapper) resolveDefault(val string) any {
	switch val {
	case "auto_generated":
		return m.secret()
	case "now":
		return m.now()
	default:
		return val
	}
}

func (m *Mapper) applyTransformations(attrs map[string]any) {
	for field, kind := range m.cfg.Transformation {
		val, ok := attrs[field]
		if !ok {
			continue
		}
		switch kind {
		case "email_domain":
			if s, ok := val.(string); ok {
				if at := strings.LastIndex(s, "@"); at >= 0 {
					attrs[field] = s[at+1:]
				}
			}
		case "identity":
			// no-op by definition
		}
	}
}

func (m *Mapper) applyRenames(attrs map[string]any) {
	for from, to := range m.cfg.Renames {
		if from == to {
			continue
		}
		if val, ok := attrs[from]; ok {
			delete(attrs, from)
			attrs[to] = val
		}
	}
}

// ApplyRenames maps externally supplied attribute names (pending extra
// fields) through the rename table so they line up with stored columns.
func (m *Mapper) ApplyRenames(attrs map[string]any) { m.applyRenames(attrs) }

// Renamed returns the stored attribute name for an internal one.
func (m *Mapper) Renamed(attr string) string {
	if to, ok := m.cfg.Renames[attr]; ok {
		return to
	}
	return attr
}

// ProviderIDAttr returns the stored attribute holding the provider-scoped
// external id, honoring both a configured mapping rule and the rename
// table.
func (m *Mapper) ProviderIDAttr(provider string) string {
	for _, rule := range m.rules(provider) {
		if rule.Source == srcID {
			return m.Renamed(rule.Destination)
		}
	}
	return m.Renamed(provider + "_id")
}

// DisplayName reads an account's display name back out of its stored
// attributes according to the name-handling mode.
func (m *Mapper) DisplayName(account *Account) string {
	nh := m.cfg.NameHandling
	if nh.Mode == "split" {
		first := account.StringAttr(m.Renamed(nh.FirstField))
		last := account.StringAttr(m.Renamed(nh.LastField))
		return strings.TrimSpace(first + " " + last)
	}
	return account.StringAttr(m.Renamed(nh.SingleField))
}

// Avatar reads an account's avatar URL from its stored attributes.
func (m *Mapper) Avatar(account *Account) string {
	return account.StringAttr(m.Renamed("avatar"))
}
