package httpclient

import "fmt"

// nonSuccessStatusError reports an HTTP response outside the 2xx range,
// classified as a transport failure per the specification.
type nonSuccessStatusError struct {
	statusCode int
}

func (e *nonSuccessStatusError) Error() string {
	return fmt.Sprintf("partner responded with non-success HTTP status %d", e.statusCode)
}

// invalidUIDFieldNameError reports a partner-configured uid_field_name that
// is not safe to use as an XML element name. Partner.Validate rejects this
// at configuration time; this is the defense-in-depth check at the point
// the name is actually used, for partner records that predate validation.
type invalidUIDFieldNameError struct {
	name string
}

func (e *invalidUIDFieldNameError) Error() string {
	return fmt.Sprintf("uid_field_name %q is not a valid XML element name", e.name)
}
