// Package handlers implements the HTTP endpoints of the map API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse = common.ErrorResponse

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeGeoJSON(w http.ResponseWriter, fc interface{}) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(fc)
}

// writeAppError maps err's code to a status.  Server errors are logged and
// their message is replaced by the code's default text.
func writeAppError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	resp := ErrorResponse{
		Code:      code.String(),
		Message:   errors.DefaultMessageForCode(code),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithContext(r.Context()).Error("request error",
			logging.String("path", r.URL.Path),
			logging.String("code", code.String()),
			logging.Err(err))
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into dst.  An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.New(errors.ErrCodeBadRequest, "malformed JSON body").WithDetail(err.Error())
	}
	return nil
}

//Personal.AI order the ending
