package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_015"
)

// Sentinel codes that are not failures.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Map Module Error Codes
const (
	ErrCodeConfigurationMissing ErrorCode = "MAP_001"
	ErrCodeEngineUnavailable    ErrorCode = "MAP_002"
	ErrCodeIconLoadFailed       ErrorCode = "MAP_003"
	ErrCodeIconNotFound         ErrorCode = "MAP_004"
	ErrCodeSessionNotFound      ErrorCode = "MAP_005"
	ErrCodeControllerUnmounted  ErrorCode = "MAP_006"
	ErrCodeFeatureInvalid       ErrorCode = "MAP_007"
)

// Listing Module Error Codes
const (
	ErrCodePropertyNotFound ErrorCode = "LISTING_001"
	ErrCodeCityNotFound     ErrorCode = "LISTING_002"
	ErrCodePropertyInvalid  ErrorCode = "LISTING_003"
	ErrCodeEventInvalid     ErrorCode = "LISTING_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,

	ErrCodeConfigurationMissing: http.StatusServiceUnavailable,
	ErrCodeEngineUnavailable:    http.StatusServiceUnavailable,
	ErrCodeIconLoadFailed:       http.StatusInternalServerError,
	ErrCodeIconNotFound:         http.StatusNotFound,
	ErrCodeSessionNotFound:      http.StatusNotFound,
	ErrCodeControllerUnmounted:  http.StatusConflict,
	ErrCodeFeatureInvalid:       http.StatusBadRequest,

	ErrCodePropertyNotFound: http.StatusNotFound,
	ErrCodeCityNotFound:     http.StatusNotFound,
	ErrCodePropertyInvalid:  http.StatusUnprocessableEntity,
	ErrCodeEventInvalid:     http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default client-facing messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeStorageError:       "object storage error",

	ErrCodeConfigurationMissing: "map access token is not configured",
	ErrCodeEngineUnavailable:    "map engine unavailable",
	ErrCodeIconLoadFailed:       "marker icons failed to load",
	ErrCodeIconNotFound:         "marker icon not found",
	ErrCodeSessionNotFound:      "map session not found",
	ErrCodeControllerUnmounted:  "map view is not mounted",
	ErrCodeFeatureInvalid:       "feature payload is invalid",

	ErrCodePropertyNotFound: "property not found",
	ErrCodeCityNotFound:     "city not found",
	ErrCodePropertyInvalid:  "property is invalid",
	ErrCodeEventInvalid:     "listing event is invalid",
}

// HTTPStatusForCode returns the HTTP status for code, 500 when unmapped.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	return HTTPStatusForCode(code) >= 500
}

// ModuleForCode returns the module prefix of code ("MAP", "LISTING", "COMMON").
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	if i := strings.Index(s, "_"); i > 0 {
		return s[:i]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
