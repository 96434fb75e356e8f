// Machine-readable error codes, carried in the "code" field of every
// error envelope (see fail in response.go). Clients branch on these
// instead of parsing messages.
//
// Codes are lowercase snake_case. The generic ones mirror HTTP status
// semantics; the domain ones name the operation that failed when the
// status alone is too coarse. Example envelope:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "slug already exists"
//	}

package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeSendFailed       = "send_failed"
	ErrCodeReplyFailed      = "reply_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
