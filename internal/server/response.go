package server

import (
	"encoding/json"
	"net/http"

	"kraken-sandbox-go/internal/apperr"

	"go.uber.org/zap"
)

var emptyResult = map[string]interface{}{}

// envelope is the shape of every response body.
type envelope struct {
	Error  []string    `json:"error"`
	Result interface{} `json:"result"`
}

func (s *Server) writeEnvelope(w http.ResponseWriter, status int, errs []string, result interface{}) {
	if errs == nil {
		errs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: errs, Result: result}); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) respond(w http.ResponseWriter, result interface{}) {
	s.writeEnvelope(w, http.StatusOK, nil, result)
}

// fail renders err into the error list. Unclassified errors are logged and
// reported as a generic internal error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
	}
	s.writeEnvelope(w, apperr.HTTPStatus(kind), []string{apperr.CodeOf(err)}, emptyResult)
}
