// Package errors provides the structured error type shared by the platform's
// infrastructure layers and its gRPC boundary.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain identifies this service in gRPC ErrorInfo details.
const Domain = "ride-copilot.platform"

// Code classifies an AppError.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidArgument
	CodeNotFound
	CodeUnavailable
	CodeTimeout
	CodeCancelled
	CodeUnparseable
	CodeDuplicate
	CodeOCRFailed
	CodeOCRInvalidImage
	CodeCaptureFailed
	CodeConfigInvalid
	CodeStorageFailed
	CodePublishFailed
)

var codeNames = map[Code]string{
	CodeUnknown:         "UNKNOWN",
	CodeInternal:        "INTERNAL",
	CodeInvalidArgument: "INVALID_ARGUMENT",
	CodeNotFound:        "NOT_FOUND",
	CodeUnavailable:     "UNAVAILABLE",
	CodeTimeout:         "TIMEOUT",
	CodeCancelled:       "CANCELLED",
	CodeUnparseable:     "UNPARSEABLE",
	CodeDuplicate:       "DUPLICATE",
	CodeOCRFailed:       "OCR_FAILED",
	CodeOCRInvalidImage: "OCR_INVALID_IMAGE",
	CodeCaptureFailed:   "CAPTURE_FAILED",
	CodeConfigInvalid:   "CONFIG_INVALID",
	CodeStorageFailed:   "STORAGE_FAILED",
	CodePublishFailed:   "PUBLISH_FAILED",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return codeNames[CodeUnknown]
}

func codeFromName(name string) (Code, bool) {
	for c, s := range codeNames {
		if s == name {
			return c, true
		}
	}
	return CodeUnknown, false
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:         codes.Unknown,
	CodeInternal:        codes.Internal,
	CodeInvalidArgument: codes.InvalidArgument,
	CodeNotFound:        codes.NotFound,
	CodeUnavailable:     codes.Unavailable,
	CodeTimeout:         codes.DeadlineExceeded,
	CodeCancelled:       codes.Canceled,
	CodeUnparseable:     codes.InvalidArgument,
	CodeDuplicate:       codes.AlreadyExists,
	CodeOCRFailed:       codes.Internal,
	CodeOCRInvalidImage: codes.InvalidArgument,
	CodeCaptureFailed:   codes.Unavailable,
	CodeConfigInvalid:   codes.FailedPrecondition,
	CodeStorageFailed:   codes.Internal,
	CodePublishFailed:   codes.Unavailable,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ErrorInfo converts to the standard google.rpc.ErrorInfo detail.
func (e *AppError) ErrorInfo() *errdetails.ErrorInfo {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md["message"] = e.Message
	return &errdetails.ErrorInfo{Reason: e.Code.String(), Domain: Domain, Metadata: md}
}

// GRPCStatus returns a gRPC status with the ErrorInfo attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	if withDetail, err := st.WithDetails(e.ErrorInfo()); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != Domain {
			continue
		}
		code, _ := codeFromName(info.GetReason())
		appErr := &AppError{Code: code, Message: info.GetMetadata()["message"]}
		for k, v := range info.GetMetadata() {
			if k != "message" {
				appErr.WithMetadata(k, v)
			}
		}
		return appErr
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

// grpcToCode maps gRPC codes back to our error codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeNotFound
	case codes.Unavailable, codes.ResourceExhausted:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.FailedPrecondition:
		return CodeConfigInvalid
	case codes.AlreadyExists:
		return CodeDuplicate
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error chain holds an AppError with the given code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeCaptureFailed, CodePublishFailed:
		return true
	default:
		return false
	}
}
