package middleware

import (
	"time"

	"recon-ledger/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger 记录每个请求的方法、路径、状态码和耗时，并把 logger 放进
// request context。Bodies are never logged: they carry ledger data.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// Recovery turns a panic into a 500 and logs it.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		log.Error().
			Interface("error", err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Panic recovered")
		c.AbortWithStatus(500)
	})
}
