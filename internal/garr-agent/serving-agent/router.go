package serving_agent

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging/ginlog"
)

// NewRouter wires the prediction, health and metrics endpoints. Metrics are
// registered with registry and served from it.
func NewRouter(predictor *Predictor, logger *zap.Logger, registry *prometheus.Registry, loggerConfig ginlog.RequestLoggerConfig) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(ginlog.RequestLogger(logger, loggerConfig.Opts()...))

	metrics := NewMetrics(registry)

	healthHandler := NewHealthHandler(predictor)
	router.GET(constants.HealthPath, healthHandler.Health)

	router.GET(constants.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	predictHandler := NewPredictHandler(predictor, metrics)
	router.GET(constants.PredictPath, predictHandler.Predict)
	// clients also call /predict/ with a trailing slash
	router.GET(constants.PredictPath+"/", predictHandler.Predict)

	return router
}
