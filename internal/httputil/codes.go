package httputil

// Machine-readable error codes returned in the "code" field of error responses.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeConflict           = "CONFLICT"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeDependencyFailure  = "DEPENDENCY_FAILURE"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"

	// auth
	CodeMissingAuth           = "MISSING_AUTH"
	CodeInvalidAuthHeader     = "INVALID_AUTH_HEADER"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeEmailNotVerified      = "EMAIL_NOT_VERIFIED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeVerificationRequired  = "VERIFICATION_TOKEN_REQUIRED"
	CodeAlreadyVerified       = "ALREADY_VERIFIED"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeAdminRequired         = "ADMIN_REQUIRED"
)
