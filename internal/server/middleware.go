package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/auth"
	"kraken-sandbox-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxCredential
	ctxParams
)

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func credentialFrom(ctx context.Context) models.Credential {
	cred, _ := ctx.Value(ctxCredential).(models.Credential)
	return cred
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxRequestID, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("Handled request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("Handler panicked",
					zap.String("request_id", requestID(r.Context())),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()),
				)
				s.writeEnvelope(w, http.StatusInternalServerError, []string{apperr.CodeInternal}, emptyResult)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate reads the body once, checks the credential and the per-key
// rate limit, and hands the parsed parameters to the handler.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.fail(w, r, fmt.Errorf("failed to read body: %w", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		values, err := parseBody(r.Header.Get("Content-Type"), raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		cred, err := s.deps.Authenticator.Authenticate(r.Context(), auth.Request{
			Key:       r.Header.Get("API-Key"),
			Signature: r.Header.Get("API-Sign"),
			Nonce:     values.Get("nonce"),
			Path:      r.URL.Path,
			PostData:  string(raw),
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !s.limiter.Allow(cred.Key) {
			s.fail(w, r, apperr.RateLimited())
			return
		}

		ctx := context.WithValue(r.Context(), ctxCredential, cred)
		ctx = context.WithValue(ctx, ctxParams, params{values})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseBody accepts form encoded and JSON bodies. JSON arrays become comma
// separated lists.
func parseBody(contentType string, raw []byte) (url.Values, error) {
	if !strings.HasPrefix(contentType, "application/json") {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidArguments, err)
		}
		return values, nil
	}

	values := url.Values{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return values, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidArguments, err)
	}
	for k, v := range body {
		switch t := v.(type) {
		case []interface{}:
			parts := make([]string, 0, len(t))
			for _, item := range t {
				parts = append(parts, fmt.Sprint(item))
			}
			values.Set(k, strings.Join(parts, ","))
		case nil:
		default:
			values.Set(k, fmt.Sprint(t))
		}
	}
	return values, nil
}

// keyLimiter keeps one token bucket per API key.
type keyLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newKeyLimiter(perSecond float64, burst int) *keyLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &keyLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (k *keyLimiter) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}
