package httpclient

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
)

// buildHeaders constructs the outbound header set: content-type first,
// then an authentication header derived from the partner's configured
// scheme, then custom_headers merged in last (custom wins on conflict,
// case-insensitively, with a warning logged for the override).
func buildHeaders(p partner.Partner, contentType string, logger *slog.Logger) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", contentType)
	h.Set("Accept", contentTypeJSON)

	switch p.AuthenticationType {
	case partner.AuthAPIKey:
		h.Set("X-API-Key", p.APIKey)
	case partner.AuthBearer:
		h.Set("Authorization", "Bearer "+p.APIKey)
	case partner.AuthBasic:
		user, password, ok := p.BasicAuthParts()
		if !ok {
			logger.Warn("partner api_key is not a valid user:password pair, skipping basic auth header",
				slog.String("partner_id", p.ID))
			break
		}
		token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		h.Set("Authorization", "Basic "+token)
	case partner.AuthNone:
		// no auth header
	}

	for name, value := range p.CustomHeaders {
		if existing := canonicalLookup(h, name); existing != "" {
			logger.Warn("custom header overrides a generated header",
				slog.String("partner_id", p.ID), slog.String("header", name))
		}
		h.Set(name, value)
	}

	return h
}

// canonicalLookup returns the existing value for name under http.Header's
// canonical form, used only to detect (for logging) whether a
// custom_headers entry is about to clobber a previously-set header.
func canonicalLookup(h http.Header, name string) string {
	key := http.CanonicalHeaderKey(name)
	if vs, ok := h[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	// http.Header keys are already canonical; a non-canonical match (e.g.
	// content-type vs Content-Type) is caught by the canonicalization
	// above, so a direct strings.EqualFold scan is only needed if callers
	// ever bypass Set/Get with raw map writes, which this package does not.
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
