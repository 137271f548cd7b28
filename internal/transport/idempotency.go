package transport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	portcache "github.com/alanyang/annotation-desk/internal/port/cache"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body so it can be stored after the handler runs.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated POST
// carrying the same Idempotency-Key on the same path. Server errors are not
// stored so the client can retry them. A nil store or non-positive ttl
// disables it.
func IdempotencyMiddleware(store portcache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if store == nil || ttl <= 0 || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		scoped := "idempotency|" + c.Request.URL.Path + "|" + key

		if data, err := store.Get(ctx, scoped); err == nil {
			var resp storedResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.Header(replayedHeader, "true")
				c.Data(resp.Status, resp.ContentType, resp.Body)
				c.Abort()
				return
			}
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if rec.Status() >= http.StatusInternalServerError {
			return
		}
		data, err := json.Marshal(storedResponse{
			Status:      rec.Status(),
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Set(ctx, scoped, data, ttl); err != nil {
			slog.WarnContext(ctx, "failed to store idempotent response", "path", c.Request.URL.Path, "error", err)
		}
	}
}
