package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam     = New(1001, "invalid parameter")
	ErrInternalServer   = New(1002, "internal server error")
	ErrUnauthorized     = New(1003, "unauthorized")
	ErrForbidden        = New(1004, "forbidden")
	ErrNotFound         = New(1005, "not found")
	ErrTooManyRequests  = New(1006, "too many requests")
	ErrStoreUnavailable = New(1007, "storage temporarily unavailable")

	// Auth errors (2xxx)
	ErrTokenInvalid  = New(2001, "token invalid")
	ErrTokenExpired  = New(2002, "token expired")
	ErrTokenMissing  = New(2003, "token missing")
	ErrTokenMismatch = New(2004, "token user mismatch")
	ErrLoginFailed   = New(2005, "login failed")
	ErrUserNotFound  = New(2006, "user not found")
	ErrUserExists    = New(2007, "user already exists")
	ErrPasswordWrong = New(2008, "password wrong")

	// Conversation errors (3xxx)
	ErrConvNotFound        = New(3001, "conversation not found")
	ErrNotParticipant      = New(3002, "not a participant of this conversation")
	ErrParticipantNotFound = New(3003, "one or more participants not found")
	ErrConversationExists  = New(3004, "conversation already exists for this pair")
	ErrTooFewParticipants  = New(3005, "at least one other participant is required")

	// Message errors (4xxx)
	ErrMessageNotFound   = New(4001, "message not found")
	ErrContentTooLong    = New(4002, "message content exceeds maximum length")
	ErrEmptyMessage      = New(4003, "message has no content and no attachments")
	ErrInvalidAttachment = New(4004, "invalid attachment")
	ErrSendFailed        = New(4005, "message send failed")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrPushFailed      = New(5004, "push message failed")
)
