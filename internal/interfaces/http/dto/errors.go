package dto

import "net/http"

// Error code constants
// Format: ERR_<DESCRIPTION>

const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when a request body fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeUnauthorized is used when a webhook signature does not verify
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeNotFound is used when a referenced task or resource is unknown
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeCredentialsMissing is used when target credentials are not configured
	ErrCodeCredentialsMissing = "ERR_CREDENTIALS_MISSING"
	// ErrCodeUpstreamUnavailable is used when the source system stays unreachable
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
)

// GetHTTPStatus maps an error code to its HTTP status code
func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeCredentialsMissing:
		return http.StatusConflict
	case ErrCodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
