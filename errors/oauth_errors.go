package errors

import (
	"fmt"
	"net/http"
)

// OAuth2Error represents a standardized OAuth 2.0 error
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StatusCode returns the HTTP status associated with the error code.
// invalid_client is 401 per RFC 6749 §5.2; everything else defaults to 400.
func (e *OAuth2Error) StatusCode() int {
	switch e.Code {
	case InvalidClient:
		return http.StatusUnauthorized
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Standard OAuth2 error codes
const (
	InvalidRequest          = "invalid_request"
	UnauthorizedClient      = "unauthorized_client"
	AccessDenied            = "access_denied"
	UnsupportedResponseType = "unsupported_response_type"
	UnsupportedGrantType    = "unsupported_grant_type"
	InvalidScope            = "invalid_scope"
	InvalidClient           = "invalid_client"
	InvalidGrant            = "invalid_grant"
	ServerError             = "server_error"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnauthorizedClient,
		Description: description,
	}
}

func NewUnsupportedResponseType(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedResponseType,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}
