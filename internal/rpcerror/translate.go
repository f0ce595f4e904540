// internal/rpcerror/translate.go
package rpcerror

import (
	"errors"
	"net/http"
	"strings"

	"authzbff/internal/httputils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultMessage is returned when the backend supplies no descriptive text
const DefaultMessage = "An unexpected error occurred"

// httpStatusByCode is the complete mapping; any other code falls back to 500
var httpStatusByCode = map[codes.Code]int{
	codes.NotFound:         http.StatusNotFound,
	codes.InvalidArgument:  http.StatusBadRequest,
	codes.PermissionDenied: http.StatusForbidden,
	codes.Unauthenticated:  http.StatusUnauthorized,
	codes.AlreadyExists:    http.StatusConflict,
}

// Translate maps a backend failure to an HTTP status code and a user-facing message.
// It never panics and is deterministic for a given error.
func Translate(err error) (int, string) {
	st, ok := fromError(err)
	if !ok {
		return http.StatusInternalServerError, DefaultMessage
	}

	httpStatus, known := httpStatusByCode[st.Code()]
	if !known {
		httpStatus = http.StatusInternalServerError
	}

	message := strings.TrimSpace(st.Message())
	if message == "" {
		message = DefaultMessage
	}

	return httpStatus, message
}

// Code returns the upper snake case name of the status code carried by err,
// or UNKNOWN when there is none
func Code(err error) string {
	st, ok := fromError(err)
	if !ok {
		return codeName(codes.Unknown)
	}
	return codeName(st.Code())
}

// ErrorBody is the JSON body written for translated failures
type ErrorBody struct {
	Error   string        `json:"error"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries the backend status code name
type ErrorDetails struct {
	Code string `json:"code"`
}

// WriteError translates err and writes it as a JSON error response
func WriteError(w http.ResponseWriter, err error) {
	httpStatus, message := Translate(err)
	httputils.WriteJSON(w, httpStatus, ErrorBody{
		Error:   message,
		Details: &ErrorDetails{Code: Code(err)},
	})
}

// fromError extracts the status carried by err, looking through wrapped errors
// so the backend's own message is kept. Context errors map to their canonical codes.
func fromError(err error) (*status.Status, bool) {
	if err == nil {
		return nil, false
	}

	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		if st := grpcErr.GRPCStatus(); st != nil {
			return st, true
		}
	}

	st := status.FromContextError(err)
	if st.Code() == codes.Unknown {
		return nil, false
	}
	return st, true
}

var codeNames = map[codes.Code]string{
	codes.OK:                 "OK",
	codes.Canceled:           "CANCELLED",
	codes.Unknown:            "UNKNOWN",
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.DeadlineExceeded:   "DEADLINE_EXCEEDED",
	codes.NotFound:           "NOT_FOUND",
	codes.AlreadyExists:      "ALREADY_EXISTS",
	codes.PermissionDenied:   "PERMISSION_DENIED",
	codes.ResourceExhausted:  "RESOURCE_EXHAUSTED",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.Aborted:            "ABORTED",
	codes.OutOfRange:         "OUT_OF_RANGE",
	codes.Unimplemented:      "UNIMPLEMENTED",
	codes.Internal:           "INTERNAL",
	codes.Unavailable:        "UNAVAILABLE",
	codes.DataLoss:           "DATA_LOSS",
	codes.Unauthenticated:    "UNAUTHENTICATED",
}

func codeName(c codes.Code) string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
