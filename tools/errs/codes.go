package errs

import "net/http"

// 错误码
const (
	ServerInternalError = 500

	UnauthorizedError        = 1001
	CredentialMalformedError = 1002
	CredentialExpiredError   = 1003

	ValidationError          = 1101
	InvalidParticipantsError = 1102
	SelfMessageError         = 1103

	UserNotFoundError = 1201
	NotFoundError     = 1202

	PersistenceError = 1301
	EnrichmentError  = 1302

	RecordExistsError = 1401
	ConflictError     = 1402
)

var (
	ErrServerInternal = NewCodeError(ServerInternalError, "Server error")

	ErrUnauthorized        = NewCodeError(UnauthorizedError, "unauthorized")
	ErrCredentialMalformed = NewCodeError(CredentialMalformedError, "invalid_token")
	ErrCredentialExpired   = NewCodeError(CredentialExpiredError, "token_expired")

	ErrValidation          = NewCodeError(ValidationError, "validation failed")
	ErrInvalidParticipants = NewCodeError(InvalidParticipantsError, "a conversation must have exactly two participants")
	ErrSelfMessage         = NewCodeError(SelfMessageError, "cannot message yourself")

	ErrUserNotFound = NewCodeError(UserNotFoundError, "User not found.")
	ErrNotFound     = NewCodeError(NotFoundError, "not found")

	ErrPersistence = NewCodeError(PersistenceError, "persistence failure")
	ErrEnrichment  = NewCodeError(EnrichmentError, "enrichment failure")

	ErrRecordExists = NewCodeError(RecordExistsError, "record already exists")
	ErrConflict     = NewCodeError(ConflictError, "conflict")
)

func init() {
	_ = DefaultCodeRelation.Add(UnauthorizedError, CredentialMalformedError)
	_ = DefaultCodeRelation.Add(UnauthorizedError, CredentialExpiredError)
	_ = DefaultCodeRelation.Add(ValidationError, InvalidParticipantsError)
	_ = DefaultCodeRelation.Add(ValidationError, SelfMessageError)
}

// HTTPStatus maps an error chain to the response status used by handlers.
func HTTPStatus(err error) int {
	ce, ok := AsCode(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch {
	case DefaultCodeRelation.Is(UnauthorizedError, ce.Code):
		return http.StatusUnauthorized
	case DefaultCodeRelation.Is(ValidationError, ce.Code), ce.Code == ConflictError:
		return http.StatusBadRequest
	case ce.Code == UserNotFoundError, ce.Code == NotFoundError:
		return http.StatusNotFound
	case ce.Code == RecordExistsError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err; internal failures are
// collapsed to the generic server error.
func Message(err error) string {
	ce, ok := AsCode(err)
	if !ok || HTTPStatus(err) == http.StatusInternalServerError {
		return ErrServerInternal.Msg
	}
	if ce.Detail != "" {
		return ce.Detail
	}
	return ce.Msg
}
