package errs

// Code is the taxonomy of spec.md §7. Every client-facing and
// internal error carries one of these.
type Code int

const (
	CodeUnspecified Code = iota
	CodeUnauthenticated
	CodePermissionDenied
	CodeInvalidArgument
	CodeFailedPrecondition
	CodeAlreadyExists
	CodeUnavailable
	CodeDeadlineExceeded
	CodeInternal
)

var codeNames = map[Code]string{
	CodeUnspecified:        "UNSPECIFIED",
	CodeUnauthenticated:    "UNAUTHENTICATED",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeFailedPrecondition: "FAILED_PRECONDITION",
	CodeAlreadyExists:      "ALREADY_EXISTS",
	CodeUnavailable:        "UNAVAILABLE",
	CodeDeadlineExceeded:   "DEADLINE_EXCEEDED",
	CodeInternal:           "INTERNAL",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Preconstructed base errors; WrapMsg/WithDetail attach request-scoped
// detail without losing the Is() relation to these bases.
var (
	ErrUnauthenticated    = NewCodeError(int(CodeUnauthenticated), "unauthenticated")
	ErrPermissionDenied   = NewCodeError(int(CodePermissionDenied), "permission denied")
	ErrInvalidArgument    = NewCodeError(int(CodeInvalidArgument), "invalid argument")
	ErrFailedPrecondition = NewCodeError(int(CodeFailedPrecondition), "failed precondition")
	ErrAlreadyExists      = NewCodeError(int(CodeAlreadyExists), "already exists")
	ErrUnavailable        = NewCodeError(int(CodeUnavailable), "unavailable")
	ErrDeadlineExceeded   = NewCodeError(int(CodeDeadlineExceeded), "deadline exceeded")
	ErrInternal           = NewCodeError(int(CodeInternal), "internal error")
)

const ServerInternalError = int(CodeInternal)
