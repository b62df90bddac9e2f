package partner

import "errors"

// Sentinel errors returned by Partner.Validate and the Repository contract.
var (
	ErrEmptyID          = errors.New("partner: id must not be empty")
	ErrEmptyBaseURL      = errors.New("partner: base_url must not be empty")
	ErrEmptyEndpoint     = errors.New("partner: start_charging_endpoint must not be empty")
	ErrInvalidTimeout    = errors.New("partner: timeout_ms must not be negative")
	ErrInvalidAuthType   = errors.New("partner: unknown authentication_type")
	ErrInvalidUIDFieldName = errors.New("partner: uid_field_name is not a valid XML element name")
	ErrNotFound          = errors.New("partner: not found")
)
