package operations

const (
	ErrBuildingNotFound    = "building_not_found"
	ErrHostNotFound        = "host_not_found"
	ErrVisitorNotFound     = "visitor_not_found"
	ErrPreApprovalNotFound = "pre_approval_not_found"
	ErrVisitNotFound       = "visit_not_found"
	ErrRecipientNotFound   = "recipient_not_found"
	ErrInvalidState        = "invalid_state"
	ErrPreconditionFailed  = "precondition_failed"
	ErrMissingFields       = "missing_fields"
	ErrServerError         = "server_error"
)

type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return e.Code + ": " + e.Detail
}

func coded(code string) *Error {
	return &Error{Code: code}
}

func codedDetail(code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}
