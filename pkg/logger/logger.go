package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tothemoon-studio/vocal-api/pkg/config"
	"github.com/tothemoon-studio/vocal-api/pkg/middleware/requestid"
)

// New builds the application logger. Production gets sampled JSON output,
// everything else the human-readable development config.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.Log.Format == "console" {
		zapCfg.Encoding = "console"
	} else {
		zapCfg.Encoding = "json"
	}
	zapCfg.Level = parseLevel(cfg.Log.Level)

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

func parseLevel(level string) zap.AtomicLevel {
	parsed := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if level == "" {
		return parsed
	}
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		// Unknown level strings fall back to info rather than failing boot.
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return parsed
}

// GinMiddleware logs one line per request after the handler chain finishes.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		l.Info("http_request", fields...)
	}
}
