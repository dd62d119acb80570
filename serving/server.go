// Package serving is the prediction HTTP service: it loads the
// Production model for every request, predicts the trip duration and
// forwards the result to the monitoring sinks.
package serving

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/mcuadros/go-gin-prometheus"

	"github.com/YuminosukeSato/greentaxi/modelstore"
	"github.com/YuminosukeSato/greentaxi/monitor"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
)

// IndexMessage is returned by GET /.
const IndexMessage = "NYC Taxi Ride Duration Prediction"

// ModelLoader resolves a models:/ URI. *modelstore.Loader implements it.
type ModelLoader interface {
	Load(ctx context.Context, modelURI string) (*modelstore.Model, error)
}

var _ ModelLoader = (*modelstore.Loader)(nil)

// Options configures the engine.
type Options struct {
	// ModelURI is loaded on every request, e.g. models:/name/Production.
	ModelURI string

	// AllowOrigins for CORS. Empty allows every origin.
	AllowOrigins []string

	// Debug keeps gin in debug mode.
	Debug bool
}

// Server handles the prediction API.
type Server struct {
	opts   Options
	loader ModelLoader
	fanout *monitor.Fanout
	logger log.Logger
}

// New returns a Server. fanout may be nil when no sink is configured.
func New(opts Options, loader ModelLoader, fanout *monitor.Fanout, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetLogger()
	}
	if fanout == nil {
		fanout = monitor.NewFanout(logger)
	}
	return &Server{
		opts:   opts,
		loader: loader,
		fanout: fanout,
		logger: logger.With(log.ComponentKey, "serving", log.ModelURIKey, opts.ModelURI),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	if !s.opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	r := gin.New()

	// Prometheus metrics.
	p := ginprometheus.NewPrometheus(PrometheusSubsystemName)
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	p.Use(r)

	// CORS
	corsConfig := cors.DefaultConfig()
	if len(s.opts.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.AllowOrigins
	}

	// Middleware
	r.Use(gin.Recovery())
	r.Use(accessLog(s.logger))
	r.Use(cors.New(corsConfig))

	r.GET("/", s.index)
	r.GET("/healthy", s.healthy)
	r.POST("/predict", s.predict)
	return r
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": IndexMessage})
}

func (s *Server) healthy(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (s *Server) predict(c *gin.Context) {
	var ride TaxiRide
	if err := c.ShouldBindJSON(&ride); err != nil {
		s.logger.Debug("invalid prediction request", log.ErrorKey, err)
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{Detail: validationDetails(err)})
		return
	}

	ctx := c.Request.Context()
	prediction, err := s.infer(ctx, &ride)
	if err != nil {
		PredictionFailureCount.Inc()
		s.logger.Error("prediction failed", log.ErrorKey, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "Internal Server Error"})
		return
	}
	PredictionCount.Inc()
	PredictedDuration.Observe(prediction)

	resp := newPrediction(&ride, prediction)
	s.fanout.Forward(ctx, monitor.Event(resp))
	c.JSON(http.StatusOK, resp)
}

// infer loads the model afresh, so a newly promoted version is served
// from the next request on.
func (s *Server) infer(ctx context.Context, ride *TaxiRide) (float64, error) {
	start := time.Now()
	model, err := s.loader.Load(ctx, s.opts.ModelURI)
	ModelLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}

	prediction, err := model.Predict(ride.Features())
	if err != nil {
		return 0, err
	}
	// JSON cannot carry NaN or ±Inf
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		return 0, errors.NewValueError("predict", "prediction is not a finite number")
	}
	s.logger.Debug("prediction served",
		log.RunIDKey, model.Descriptor.RunID,
		log.PredictionKey, prediction,
	)
	return prediction, nil
}

func accessLog(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"http.method", c.Request.Method,
			log.HTTPPathKey, c.Request.URL.Path,
			log.HTTPStatusKey, c.Writer.Status(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}
