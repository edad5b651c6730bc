package handler

// Machine-readable message codes returned in the JSON error envelope.
const (
	MsgEmailPasswordRequired = "EMAIL_PASSWORD_REQUIRED"
	MsgInvalidCredentials    = "INVALID_CREDENTIALS"
	MsgInvalidPayload        = "INVALID_PAYLOAD"
	MsgEmailInUse            = "EMAIL_IN_USE"
	MsgUnauthorized          = "UNAUTHORIZED"
	MsgInvalidToken          = "INVALID_TOKEN"
	MsgNotFound              = "NOT_FOUND"
	MsgInternalError         = "INTERNAL_ERROR"
)

// Human-readable form errors.
const (
	formErrInvalidCredentials = "invalid credentials"
	formErrEmailInUse         = "email already registered"
	formErrInvalidSignup      = "password is not acceptable"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Message string   `json:"message" example:"INVALID_PAYLOAD"`
	Errors  []string `json:"errors,omitempty"`
}
