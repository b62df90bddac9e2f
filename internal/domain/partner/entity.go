// Package partner provides the Partner domain entity and related business logic.
// A Partner describes one charge-point operator the broadcast gateway can
// dispatch a start-charging request to.
package partner

import (
	"regexp"
	"strings"
	"time"
)

// xmlNameSafe matches the subset of valid XML element-name syntax this
// gateway allows for a partner-configured uid_field_name: an ASCII letter
// or underscore, followed by letters, digits, '.', '-' or '_'. Colons are
// rejected even though XML allows them in unqualified names, since this
// codebase never emits namespaced elements and a colon there is far more
// likely to be a misconfiguration than an intentional namespace prefix.
var xmlNameSafe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidXMLFieldName reports whether name is safe to use as an XML element
// name, i.e. as uid_field_name when request_format is XML.
func ValidXMLFieldName(name string) bool {
	return xmlNameSafe.MatchString(name)
}

// AuthenticationType selects how the HTTP client authenticates to a partner.
type AuthenticationType string

const (
	AuthNone   AuthenticationType = "NONE"
	AuthAPIKey AuthenticationType = "API_KEY"
	AuthBearer AuthenticationType = "BEARER"
	AuthBasic  AuthenticationType = "BASIC"
)

// RequestFormat selects how the outbound request body is encoded.
type RequestFormat string

const (
	FormatJSON RequestFormat = "JSON"
	FormatXML  RequestFormat = "XML"
	FormatForm RequestFormat = "FORM_DATA"
)

// DefaultTimeoutMillis is used when a partner record omits timeout_ms.
const DefaultTimeoutMillis = 5000

// Partner is the cached, immutable-per-generation record describing one
// charge-point operator.
type Partner struct {
	ID                    string             `json:"id" db:"id" koanf:"id"`
	Name                  string             `json:"name" db:"name" koanf:"name"`
	BaseURL               string             `json:"base_url" db:"base_url" koanf:"base_url"`
	StartChargingEndpoint string             `json:"start_charging_endpoint" db:"start_charging_endpoint" koanf:"start_charging_endpoint"`
	HTTPMethod            string             `json:"http_method" db:"http_method" koanf:"http_method"`
	AuthenticationType    AuthenticationType `json:"authentication_type" db:"authentication_type" koanf:"authentication_type"`
	APIKey                string             `json:"api_key" db:"api_key" koanf:"api_key"`
	RequestFormat         RequestFormat      `json:"request_format" db:"request_format" koanf:"request_format"`
	UIDFieldName          string             `json:"uid_field_name" db:"uid_field_name" koanf:"uid_field_name"`
	SuccessStatusPattern  string             `json:"success_status_pattern" db:"success_status_pattern" koanf:"success_status_pattern"`
	ResponseStatusPath    string             `json:"response_status_path" db:"response_status_path" koanf:"response_status_path"`
	ResponseMessagePath   string             `json:"response_message_path" db:"response_message_path" koanf:"response_message_path"`
	TimeoutMillis         int                `json:"timeout_ms" db:"timeout_ms" koanf:"timeout_ms"`
	CustomHeaders         map[string]string  `json:"custom_headers" db:"custom_headers" koanf:"custom_headers"`
	Enabled               bool               `json:"enabled" db:"enabled" koanf:"enabled"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at" koanf:"-"`
}

// URL returns the concatenated outbound request URL.
// No path normalization is performed, matching the partner's exact
// configured concatenation.
func (p *Partner) URL() string {
	return p.BaseURL + p.StartChargingEndpoint
}

// SuccessTokens splits SuccessStatusPattern into trimmed, non-empty tokens.
func (p *Partner) SuccessTokens() []string {
	parts := strings.Split(p.SuccessStatusPattern, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// MatchesSuccess reports whether status matches any configured success
// token, case-insensitively.
func (p *Partner) MatchesSuccess(status string) bool {
	if status == "" {
		return false
	}
	for _, tok := range p.SuccessTokens() {
		if strings.EqualFold(tok, status) {
			return true
		}
	}
	return false
}

// BasicAuthParts splits APIKey on the first ':' into user/password for
// BASIC authentication. ok is false when no separator is present, in which
// case the caller must send no Authorization header (surprising but
// specified behavior).
func (p *Partner) BasicAuthParts() (user, password string, ok bool) {
	idx := strings.Index(p.APIKey, ":")
	if idx < 0 {
		return "", "", false
	}
	return p.APIKey[:idx], p.APIKey[idx+1:], true
}

// ClampTimeout clamps TimeoutMillis into (0, maxMillis], defaulting to
// DefaultTimeoutMillis when zero or negative. Returns true when the value
// was changed, so callers can log a warning.
func (p *Partner) ClampTimeout(maxMillis int) (clamped bool) {
	original := p.TimeoutMillis
	if p.TimeoutMillis <= 0 {
		p.TimeoutMillis = DefaultTimeoutMillis
	}
	if maxMillis > 0 && p.TimeoutMillis > maxMillis {
		p.TimeoutMillis = maxMillis
	}
	return p.TimeoutMillis != original
}

// Validate checks the structural invariants: non-empty id, base_url and
// start_charging_endpoint, a non-negative timeout (zero means
// DefaultTimeoutMillis, see ClampTimeout), a known authentication type,
// and an XML-safe uid_field_name when request_format is XML. api_key is
// not checked for any authentication type; a BASIC key without a ':'
// separator is accepted here and leads to no Authorization header at send
// time.
func (p *Partner) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		return ErrEmptyBaseURL
	}
	if strings.TrimSpace(p.StartChargingEndpoint) == "" {
		return ErrEmptyEndpoint
	}
	if p.TimeoutMillis < 0 {
		return ErrInvalidTimeout
	}
	switch p.AuthenticationType {
	case AuthNone, AuthAPIKey, AuthBearer, AuthBasic:
	default:
		return ErrInvalidAuthType
	}
	if p.RequestFormat == FormatXML && !ValidXMLFieldName(p.UIDFieldName) {
		return ErrInvalidUIDFieldName
	}
	return nil
}
