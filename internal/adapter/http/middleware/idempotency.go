package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/pointledger/internal/adapter/http/dto"
	"github.com/iho/pointledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks responses served from the cache.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	defaultIdempotencyTTL = 24 * time.Hour
	processingMarker      = "processing"
)

// cachedResponse is what the store keeps for a completed request. Fingerprint
// ties the response to the request that produced it.
type cachedResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

// IdempotencyMiddleware answers retried requests from Redis before they reach the ledger.
// The ledger still enforces idempotency on its own; this only saves the round trip.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. A zero ttl uses 24h.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// requestFingerprint hashes the method, path and body. The mutating routes take
// no path parameters, so the path identifies the operation.
func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: "failed to read request body",
				Code:  "invalid_input",
			})
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		fingerprint := requestFingerprint(r.Method, r.URL.Path, body)

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			// The ledger's own check still applies.
			log.Warn().Err(err).Str("key", key).Msg("idempotency cache unavailable")
			next.ServeHTTP(w, r)
			return
		}

		if exists {
			m.replay(w, key, fingerprint, cached)
			return
		}

		release := func() {
			// The request context may already be cancelled once the client has its answer.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			if err := m.store.Release(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
			}
		}

		finished := false
		defer func() {
			if !finished {
				release()
			}
		}()

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode < 200 || recorder.statusCode >= 300 {
			return
		}

		payload, err := json.Marshal(cachedResponse{
			Fingerprint: fingerprint,
			Status:      recorder.statusCode,
			Body:        recorder.body.Bytes(),
		})
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
		defer cancel()
		if err := m.store.Update(ctx, key, payload, m.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
			return
		}
		finished = true
	})
}

// replay answers a request whose key is already claimed.
func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, key, fingerprint string, raw []byte) {
	if string(raw) == processingMarker {
		writeJSONError(w, http.StatusConflict, dto.ErrorResponse{
			Error: "request with this idempotency key is in progress",
			Code:  "idempotency_in_progress",
		})
		return
	}

	var cached cachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Status == 0 {
		log.Warn().Err(err).Str("key", key).Msg("unreadable idempotent response")
		writeJSONError(w, http.StatusConflict, dto.ErrorResponse{
			Error: "idempotency key was used by a request that cannot be replayed",
			Code:  "idempotency_conflict",
		})
		return
	}

	if cached.Fingerprint != fingerprint {
		writeJSONError(w, http.StatusConflict, dto.ErrorResponse{
			Error: "idempotency key was already used for a different request",
			Code:  "idempotency_conflict",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
