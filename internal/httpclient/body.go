package httpclient

import (
	"encoding/json"
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
)

// startChargingFields are the three members every body format carries,
// regardless of encoding.
type startChargingFields struct {
	UIDFieldName string
	UID          string
	Timestamp    time.Time
	RequestID    uuid.UUID
}

func newStartChargingFields(p partner.Partner, uid string) startChargingFields {
	return startChargingFields{
		UIDFieldName: p.UIDFieldName,
		UID:          uid,
		Timestamp:    time.Now().UTC(),
		RequestID:    uuid.New(),
	}
}

const contentTypeJSON = "application/json"
const contentTypeXML = "application/xml"
const contentTypeForm = "application/x-www-form-urlencoded"

// buildBody renders the outbound request body and its content-type per
// the partner's configured request_format. Unknown formats fall back to
// JSON, matching the specification.
func buildBody(p partner.Partner, uid string) (body []byte, contentType string, err error) {
	fields := newStartChargingFields(p, uid)

	switch p.RequestFormat {
	case partner.FormatXML:
		b, err := buildXMLBody(fields)
		return b, contentTypeXML, err
	case partner.FormatForm:
		return buildFormBody(fields), contentTypeForm, nil
	case partner.FormatJSON:
		b, err := buildJSONBody(fields)
		return b, contentTypeJSON, err
	default:
		b, err := buildJSONBody(fields)
		return b, contentTypeJSON, err
	}
}

// buildJSONBody marshals with encoding/json via a map, keeping the uid field
// name dynamic, since the field name itself is configuration.
func buildJSONBody(f startChargingFields) ([]byte, error) {
	m := map[string]any{
		f.UIDFieldName: f.UID,
		"timestamp":    f.Timestamp.Format(time.RFC3339),
		"requestId":    f.RequestID.String(),
	}
	return json.Marshal(m)
}

// buildXMLBody cannot use struct marshalling, since encoding/xml needs a
// static struct tag; it instead builds the document with xml.Encoder and
// explicit StartElement/EndElement tokens so uid_field_name can vary per
// partner. The element name is checked with partner.ValidXMLFieldName and
// rejected if unsafe; XML special characters in the uid value are escaped
// by the encoder.
func buildXMLBody(f startChargingFields) ([]byte, error) {
	if !partner.ValidXMLFieldName(f.UIDFieldName) {
		return nil, &invalidUIDFieldNameError{name: f.UIDFieldName}
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)

	enc := xml.NewEncoder(&sb)

	root := xml.StartElement{Name: xml.Name{Local: "StartChargingRequest"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	if err := encodeXMLElement(enc, f.UIDFieldName, f.UID); err != nil {
		return nil, err
	}
	if err := encodeXMLElement(enc, "timestamp", f.Timestamp.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := encodeXMLElement(enc, "requestId", f.RequestID.String()); err != nil {
		return nil, err
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// encodeXMLElement writes <name>value</name> through the encoder, so the
// value goes through encoding/xml's escaping, which a literal
// string-concatenation template would not do. The name is written as given;
// callers pass only fixed names or one that passed ValidXMLFieldName.
func encodeXMLElement(enc *xml.Encoder, name, value string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(value)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func buildFormBody(f startChargingFields) []byte {
	v := url.Values{}
	v.Set(f.UIDFieldName, f.UID)
	v.Set("timestamp", f.Timestamp.Format(time.RFC3339))
	v.Set("requestId", f.RequestID.String())
	return []byte(v.Encode())
}
