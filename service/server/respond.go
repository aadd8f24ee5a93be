package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
)

// Error codes carried in API error bodies.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeNotFound      = "NOT_FOUND"
	CodeRateLimited   = "RATE_LIMITED"
	CodeUpstreamError = "UPSTREAM_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
)

const (
	msgEmptyTransaction  = "This transaction contains no operations"
	msgTxNotFound        = "Transaction not found on the Stellar network."
	msgAccountNotFound   = "Account not found on the Stellar network."
	msgUpstreamError     = "Unable to reach Stellar network. Please try again later."
	msgInternalError     = "An internal error occurred."
	msgRateLimited       = "Too many requests. Please slow down."
	msgWatchesDisabled   = "Account watches are not enabled on this server."
	msgLabelsDisabled    = "Label management is not enabled on this server."
	msgStreamingDisabled = "Streaming is not enabled on this server."
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, code, message string, statusCode int) {
	writeJSON(w, ErrorBody{Error: ErrorDetail{Code: code, Message: message}}, statusCode)
}

// writeUpstreamError maps an error from fetching and explaining Stellar data
// to a response. notFound is the message used for a Horizon 404.
func writeUpstreamError(w http.ResponseWriter, err error, notFound string) {
	var herr *horizon.Error
	switch {
	case errors.Is(err, explain.ErrEmptyTransaction):
		writeError(w, CodeBadRequest, msgEmptyTransaction, http.StatusBadRequest)
	case errors.Is(err, horizon.ErrNotFound):
		writeError(w, CodeNotFound, notFound, http.StatusNotFound)
	case errors.As(err, &herr) && herr.StatusCode == http.StatusBadRequest:
		msg := herr.Title
		if herr.Detail != "" {
			msg = herr.Detail
		}
		writeError(w, CodeBadRequest, msg, http.StatusBadRequest)
	case errors.Is(err, horizon.ErrUnavailable), errors.As(err, &herr):
		writeError(w, CodeUpstreamError, msgUpstreamError, http.StatusBadGateway)
	default:
		writeError(w, CodeInternalError, msgInternalError, http.StatusInternalServerError)
	}
}
