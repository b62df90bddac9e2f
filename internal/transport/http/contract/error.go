// Package contract provides HTTP transport layer contracts including
// RFC 7807 Problem Details for machine-readable error responses.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/app"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/transport/http/ctxutil"
)

// ProblemBaseURL is the default base URL for problem type URIs.
const ProblemBaseURL = "https://api.example.com/problems/"

var problemBaseURL atomic.Value // string

func init() {
	problemBaseURL.Store(ProblemBaseURL)
}

// The ProblemType*Slug constants live in problem.go, alongside Problem
// itself, to keep a single declaration per package.

func SetProblemBaseURL(baseURL string) error {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return fmt.Errorf("problem base URL is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("problem base URL must be an absolute URL (scheme + host)")
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	problemBaseURL.Store(trimmed)
	return nil
}

// ProblemDetail represents an RFC 7807 Problem Details response.
type ProblemDetail struct {
	Type             string            `json:"type"`
	Title            string            `json:"title"`
	Status           int               `json:"status"`
	Detail           string            `json:"detail"`
	Instance         string            `json:"instance"`
	Code             string            `json:"code"`
	RequestID        string            `json:"request_id,omitempty"`
	TraceID          string            `json:"trace_id,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// populateProblemDetailIDs extracts request_id and trace_id from the request
// context and sets them on the ProblemDetail.
func populateProblemDetailIDs(r *http.Request, problem *ProblemDetail) {
	if r == nil || problem == nil {
		return
	}
	problem.RequestID = ctxutil.GetRequestID(r.Context())
	if traceID := ctxutil.GetTraceID(r.Context()); traceID != "" && traceID != ctxutil.EmptyTraceID {
		problem.TraceID = traceID
	}
}

// ValidationError is declared in problem.go, alongside Problem, to keep a
// single declaration per package.

// mapCodeToStatus maps AppError.Code to HTTP status code.
func mapCodeToStatus(code string) int {
	switch code {
	case app.CodeUserNotFound:
		return http.StatusNotFound // 404
	case app.CodeEmailExists:
		return http.StatusConflict // 409
	case app.CodeValidationError:
		return http.StatusBadRequest // 400
	case app.CodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge // 413
	case app.CodeUnauthorized:
		return http.StatusUnauthorized // 401
	case app.CodeForbidden:
		return http.StatusForbidden // 403
	case app.CodeRateLimitExceeded:
		return http.StatusTooManyRequests // 429
	case app.CodeServiceUnavailable:
		return http.StatusServiceUnavailable // 503
	case app.CodeInternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// codeToTitle returns a human-readable title for the error code.
func codeToTitle(code string) string {
	switch code {
	case app.CodeUserNotFound:
		return "User Not Found"
	case app.CodeEmailExists:
		return "Email Already Exists"
	case app.CodeValidationError:
		return "Validation Error"
	case app.CodeRequestTooLarge:
		return "Request Entity Too Large"
	case app.CodeUnauthorized:
		return "Unauthorized"
	case app.CodeForbidden:
		return "Forbidden"
	case app.CodeRateLimitExceeded:
		return "Too Many Requests"
	case app.CodeServiceUnavailable:
		return "Service Unavailable"
	case app.CodeInternalError:
		return "Internal Server Error"
	default:
		return "Internal Server Error"
	}
}

func codeToTypeSlug(code string) string {
	switch code {
	case app.CodeValidationError:
		return ProblemTypeValidationErrorSlug
	case app.CodeUserNotFound:
		return ProblemTypeNotFoundSlug
	case app.CodeEmailExists:
		return ProblemTypeConflictSlug
	case app.CodeRequestTooLarge:
		return ProblemTypeValidationErrorSlug
	case app.CodeUnauthorized:
		return ProblemTypeUnauthorizedSlug
	case app.CodeForbidden:
		return ProblemTypeForbiddenSlug
	case app.CodeRateLimitExceeded:
		return ProblemTypeRateLimitSlug
	case app.CodeServiceUnavailable:
		return ProblemTypeServiceUnavailableSlug
	case app.CodeInternalError:
		return ProblemTypeInternalErrorSlug
	default:
		return ProblemTypeInternalErrorSlug
	}
}

// problemTypeURL returns the RFC 7807 type URL.
func problemTypeURL(slug string) string {
	baseURL, ok := problemBaseURL.Load().(string)
	if !ok || baseURL == "" {
		baseURL = ProblemBaseURL
	}
	return baseURL + slug
}

// ProblemTypeURL returns the RFC 7807 type URL for a problem type slug,
// for callers outside this package building a Problem directly.
func ProblemTypeURL(slug string) string {
	return problemTypeURL(slug)
}

// safeDetail returns a safe error message (no internal details for 5xx).
// CodeServiceUnavailable is exempt: its message is an operational notice
// ("server is shutting down"), not a leaked internal detail.
func safeDetail(appErr *app.AppError) string {
	if appErr.Code == app.CodeServiceUnavailable {
		return appErr.Message
	}
	if mapCodeToStatus(appErr.Code) >= 500 {
		return "An internal error occurred"
	}
	return appErr.Message
}

func validationErrorsFromAppError(appErr *app.AppError) []ValidationError {
	if appErr == nil || appErr.Err == nil {
		return nil
	}

	type fieldMessageError interface {
		Field() string
		Message() string
	}

	var fm fieldMessageError
	if errors.As(appErr.Err, &fm) {
		field := strings.TrimSpace(fm.Field())
		message := strings.TrimSpace(fm.Message())
		if field == "" {
			field = "validation"
		}
		if message == "" {
			message = safeValidationMessage(appErr)
		}
		return []ValidationError{{Field: field, Message: message}}
	}

	return []ValidationError{{Field: "validation", Message: safeValidationMessage(appErr)}}
}

func safeValidationMessage(appErr *app.AppError) string {
	if appErr == nil {
		return "Validation failed"
	}
	message := strings.TrimSpace(appErr.Message)
	if message == "" {
		return "Validation failed"
	}
	return message
}

func writeProblemJSON(w http.ResponseWriter, status int, problem ProblemDetail) {
	payload, err := json.Marshal(problem)
	if err != nil {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusInternalServerError)
		instanceJSON, _ := json.Marshal(problem.Instance)
		_, _ = w.Write([]byte(`{"type":"` + problemTypeURL(ProblemTypeInternalErrorSlug) + `","title":"Internal Server Error","status":500,"detail":"An internal error occurred","instance":` + string(instanceJSON) + `,"code":"INTERNAL_ERROR"}`))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		return
	}
}

// WriteProblemJSON writes an RFC 7807 error response.
func WriteProblemJSON(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.AppError
	if !errors.As(err, &appErr) {
		// Unknown error → internal error (don't expose details)
		appErr = &app.AppError{
			Op:      "unknown",
			Code:    app.CodeInternalError,
			Message: "An internal error occurred",
			Err:     err,
		}
	}

	status := mapCodeToStatus(appErr.Code)
	var validationErrors []ValidationError
	if appErr.Code == app.CodeValidationError {
		validationErrors = validationErrorsFromAppError(appErr)
		if len(validationErrors) == 0 {
			validationErrors = []ValidationError{{Field: "validation", Message: safeValidationMessage(appErr)}}
		}
	}

	problem := ProblemDetail{
		Type:             problemTypeURL(codeToTypeSlug(appErr.Code)),
		Title:            codeToTitle(appErr.Code),
		Status:           status,
		Detail:           safeDetail(appErr),
		Instance:         r.URL.Path,
		Code:             appErr.Code,
		ValidationErrors: validationErrors,
	}
	populateProblemDetailIDs(r, &problem)

	writeProblemJSON(w, status, problem)
}

// NewValidationProblem creates a ProblemDetail for validation errors.
func NewValidationProblem(r *http.Request, validationErrors []ValidationError) *ProblemDetail {
	problem := &ProblemDetail{
		Type:             problemTypeURL(ProblemTypeValidationErrorSlug),
		Title:            "Validation Error",
		Status:           http.StatusBadRequest,
		Detail:           "One or more fields failed validation",
		Instance:         r.URL.Path,
		Code:             app.CodeValidationError,
		ValidationErrors: validationErrors,
	}
	populateProblemDetailIDs(r, problem)
	return problem
}

// WriteValidationError writes a validation error response.
func WriteValidationError(w http.ResponseWriter, r *http.Request, validationErrors []ValidationError) {
	problem := NewValidationProblem(r, validationErrors)
	writeProblemJSON(w, http.StatusBadRequest, *problem)
}
