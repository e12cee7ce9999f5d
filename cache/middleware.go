package cache

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
)

type bodyCapture struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves cached bodies for GET requests and stores successful
// responses on the way out. Attach it only to routes that are safe to cache.
func (c *Cache) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}

		key := Key(ctx.Request.Method, ctx.Request.URL.Path, ctx.Request.URL.RawQuery)
		if body, contentType, ok := c.Get(key); ok {
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, contentType, body)
			ctx.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: ctx.Writer, buf: &bytes.Buffer{}}
		ctx.Writer = capture
		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK {
			c.Set(key, ctx.Request.URL.Path, capture.buf.Bytes(), ctx.Writer.Header().Get("Content-Type"))
		}
	}
}
