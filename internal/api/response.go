package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"price-predicates/internal/predicate"
)

type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

type errorBody struct {
	Kind     predicate.Kind `json:"kind"`
	Messages []string       `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func writeError(w http.ResponseWriter, status int, kind predicate.Kind, messages ...string) {
	if len(messages) == 0 {
		messages = []string{http.StatusText(status)}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     &errorBody{Kind: kind, Messages: messages},
		Timestamp: time.Now().UnixMilli(),
	})
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind predicate.Kind) int {
	switch kind {
	case predicate.KindValidation, predicate.KindInvalidThreshold:
		return http.StatusBadRequest
	case predicate.KindUnauthorized:
		return http.StatusUnauthorized
	case predicate.KindNotFound:
		return http.StatusNotFound
	case predicate.KindInvalidState:
		return http.StatusConflict
	case predicate.KindOracleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := predicate.KindOf(err)
	status := statusFor(kind)

	var messages []string
	var perr *predicate.Error
	if errors.As(err, &perr) && len(perr.Messages) > 0 {
		messages = perr.Messages
	}
	if kind == predicate.KindInternal {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		messages = []string{"internal error"}
	} else if len(messages) == 0 {
		messages = []string{err.Error()}
	}
	writeError(w, status, kind, messages...)
}
