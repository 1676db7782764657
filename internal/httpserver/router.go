package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gemini-extract/internal/handler"
	"gemini-extract/pkg/circuitbreaker"
)

const RootMessage = "API is running. POST to /generate with multipart/form-data."

type Router struct {
	Engine *gin.Engine
}

// BreakerStater exposes the state of the upstream circuit breaker.
type BreakerStater interface {
	BreakerState() circuitbreaker.State
}

// NewRouter builds the engine. breaker may be nil, /healthz then omits the
// upstream state.
func NewRouter(generateHandler *handler.GenerateHandler, breaker BreakerStater, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(
		TraceMiddleware(),
		RecoveryMiddleware(log),
		CORSMiddleware(),
		AccessLogMiddleware(log),
		MetricsMiddleware(),
	)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RootMessage)
	})
	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if breaker != nil {
			body["upstream"] = breaker.BreakerState().String()
		}
		c.JSON(http.StatusOK, body)
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/generate", generateHandler.Generate)

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})

	return &Router{Engine: r}
}

// Server wraps the engine in an http.Server so callers can shut it down.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
