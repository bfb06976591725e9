package errs

// Error codes for the realtime gateway. 11xx are connection/auth faults, 12xx
// are delivery faults, 15xx are server-side faults.
const (
	CodeAuthTimeout     = 1101
	CodeAuthInvalid     = 1102
	CodeNotAuthorized   = 1103
	CodeSessionReplaced = 1104
	CodeMalformedFrame  = 1201
	CodePersistence     = 1202
	CodeDelivery        = 1203
	CodeServerInternal  = 1500
)

var (
	ErrAuthTimeout     = NewCodeError(CodeAuthTimeout, "authentication timeout")
	ErrAuthInvalid     = NewCodeError(CodeAuthInvalid, "invalid or expired token")
	ErrNotAuthorized   = NewCodeError(CodeNotAuthorized, "connection not authenticated")
	ErrSessionReplaced = NewCodeError(CodeSessionReplaced, "session superseded by a newer connection")
	ErrMalformedFrame  = NewCodeError(CodeMalformedFrame, "malformed frame")
	ErrPersistence     = NewCodeError(CodePersistence, "message persistence failed")
	ErrDelivery        = NewCodeError(CodeDelivery, "delivery failed")
	ErrServerInternal  = NewCodeError(CodeServerInternal, "internal server error")
)
