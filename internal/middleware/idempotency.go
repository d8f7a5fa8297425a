package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/observability"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	idempotencyTTL = 24 * time.Hour
	inFlightTTL    = 30 * time.Second
)

// storedResponse is what a retry with the same key receives. StatusCode 0
// marks a request that is still being processed.
type storedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// bodyRecorder tees the response body so it can be stored after the handler runs.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// replayStore keeps idempotent responses in Redis.
type replayStore struct {
	client *redis.Client
}

func (s replayStore) load(ctx context.Context, key string) (*storedResponse, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// claim marks key as in flight. It returns false if the key already exists.
func (s replayStore) claim(ctx context.Context, key string) (bool, error) {
	data, _ := json.Marshal(storedResponse{})
	return s.client.SetNX(ctx, key, data, inFlightTTL).Result()
}

func (s replayStore) save(ctx context.Context, key string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, idempotencyTTL).Err()
}

func (s replayStore) forget(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// IdempotencyMiddleware replays the stored response when a POST or PATCH is
// retried with the same Idempotency-Key. Keys are scoped to the caller and
// path. A retry that arrives while the first attempt is still running gets
// 409. Redis failures let the request through unprotected. A nil client
// disables the middleware.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	store := replayStore{client: redisClient}

	return func(c *gin.Context) {
		if redisClient == nil || (c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPatch) {
			c.Next()
			return
		}
		raw := c.GetHeader(idempotencyHeader)
		if raw == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := idempotencyKey(c, raw)

		stored, err := store.load(ctx, key)
		switch {
		case err == nil && stored.StatusCode == 0:
			observability.IdempotencyTotal.WithLabelValues("in_flight").Inc()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is still in progress"})
			return
		case err == nil:
			observability.IdempotencyTotal.WithLabelValues("replayed").Inc()
			c.Header(replayedHeader, "true")
			c.Data(stored.StatusCode, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			slog.WarnContext(ctx, "idempotency lookup failed", slog.Any("error", err))
			c.Next()
			return
		}

		claimed, err := store.claim(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "idempotency claim failed", slog.Any("error", err))
			c.Next()
			return
		}
		if !claimed {
			observability.IdempotencyTotal.WithLabelValues("in_flight").Inc()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is still in progress"})
			return
		}
		observability.IdempotencyTotal.WithLabelValues("stored").Inc()

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// The request may have been cancelled by the client; the outcome must still be recorded.
		saveCtx := context.WithoutCancel(ctx)
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			// Not final; a retry must run again.
			if err := store.forget(saveCtx, key); err != nil {
				slog.WarnContext(ctx, "idempotency release failed", slog.Any("error", err))
			}
			return
		}
		err = store.save(saveCtx, key, storedResponse{
			StatusCode:  status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			slog.WarnContext(ctx, "idempotency save failed", slog.Any("error", err))
		}
	}
}

func idempotencyKey(c *gin.Context, key string) string {
	callerID := "anonymous"
	if caller, ok := CallerFrom(c); ok {
		callerID = caller.ID
	}
	return "idempotency:" + callerID + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}
