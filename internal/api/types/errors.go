package types

import (
	"errors"

	appErr "github.com/teamboard/engine/pkg/errors"
)

// FromAppError converts err into the API error body. Internal errors keep
// their message but never the wrapped cause.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var ae *appErr.AppError
	if errors.As(err, &ae) {
		out := &APIError{Code: string(ae.Code), Message: ae.Message}
		if ae.Code != appErr.CodeInternal && ae.Code != appErr.CodeUnknown && ae.Err != nil {
			out.Details = ae.Err.Error()
		}
		return out
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}
