package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"k8s.io/klog/v2"

	"github.com/piwi3910/bompack/internal/engine"
	"github.com/piwi3910/bompack/internal/model"
)

var (
	ErrNoRectangles  = errors.New("no rectangles to nest")
	ErrTooManyShapes = errors.New("too many rectangles")
)

// Config tunes the HTTP service.
type Config struct {
	// Defaults fills every settings field a request leaves out.
	Defaults model.Settings
	// Timeout bounds a single nest or compare request, 0 disables it.
	Timeout time.Duration
	// MaxRectangles caps the rectangles of one request, 0 disables it.
	MaxRectangles int
	BodyLimit     int
}

// NestRequest is the body of POST /nest and POST /compare.
type NestRequest struct {
	Settings   model.Settings    `json:"settings"`
	Rectangles []model.Rectangle `json:"rectangles"`
}

// CompareResponse is the body returned by POST /compare.
type CompareResponse struct {
	Results  []engine.ComparisonResult `json:"results"`
	Best     int                       `json:"best"`
	BestName string                    `json:"best_name"`
}

// Server exposes the nesting engine over HTTP.
type Server struct {
	cfg   Config
	ready atomic.Bool
}

func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.ready.Store(true)
	return s
}

// SetReady toggles the readiness probe, e.g. while shutting down.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "bompack",
		BodyLimit: s.cfg.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestLogger())

	app.Get("/health/live", s.liveness)
	app.Get("/health/ready", s.readiness)

	app.Post("/nest", s.nest)
	app.Post("/compare", s.compare)

	return app
}

func (s *Server) liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

func (s *Server) readiness(c fiber.Ctx) error {
	if !s.ready.Load() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "shutting down"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) nest(c fiber.Ctx) error {
	req, err := s.decode(c)
	if err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	opt := engine.New(req.Settings)
	opt.Observer = engine.KlogObserver
	result, err := opt.Nest(ctx, req.Rectangles)
	if err != nil {
		return nestError(c, err)
	}

	klog.Infof("nest: %d rectangles with %s, %d bins at %.1f%%, %d unplaced",
		len(req.Rectangles), result.Algorithm, len(result.Bins), result.TotalUtilization()*100, len(result.Unplaced))
	return c.JSON(result)
}

func (s *Server) compare(c fiber.Ctx) error {
	req, err := s.decode(c)
	if err != nil {
		return badRequest(c, err)
	}
	if err := req.Settings.Validate(); err != nil {
		return badRequest(c, err)
	}
	if err := model.ValidateRectangles(req.Rectangles); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results, best, err := engine.CompareScenarios(ctx, engine.BuildDefaultScenarios(req.Settings), req.Rectangles)
	if err != nil {
		return nestError(c, err)
	}

	resp := CompareResponse{Results: results, Best: best}
	if best >= 0 {
		resp.BestName = results[best].Scenario.Name
	}
	klog.Infof("compare: %d rectangles over %d scenarios, best %q", len(req.Rectangles), len(results), resp.BestName)
	return c.JSON(resp)
}

// decode parses the request body on top of the default settings.
func (s *Server) decode(c fiber.Ctx) (NestRequest, error) {
	req := NestRequest{Settings: s.cfg.Defaults}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Rectangles) == 0 {
		return req, ErrNoRectangles
	}
	if s.cfg.MaxRectangles > 0 && len(req.Rectangles) > s.cfg.MaxRectangles {
		return req, fmt.Errorf("%w: %d exceeds %d", ErrTooManyShapes, len(req.Rectangles), s.cfg.MaxRectangles)
	}
	return req, nil
}

func (s *Server) requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(c.Context(), s.cfg.Timeout)
	}
	return context.WithCancel(c.Context())
}

func badRequest(c fiber.Ctx, err error) error {
	klog.V(1).Infof("%s %s rejected: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// nestError maps engine failures to status codes: invalid input is the
// caller's fault, an expired deadline is a timeout.
func nestError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		klog.Warningf("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{"error": err.Error()})
	case isInputError(err):
		return badRequest(c, err)
	default:
		klog.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func isInputError(err error) bool {
	for _, target := range []error{
		model.ErrInvalidBin, model.ErrInvalidRectangle, model.ErrInvalidRotationSteps,
		model.ErrUnknownAlgorithm, model.ErrUnknownSortMethod, model.ErrUnknownStrategy,
		model.ErrInvalidGenetic,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// requestLogger logs every request through klog at verbosity 2.
func requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		klog.V(2).Infof("%d - %s %s %s", c.Response().StatusCode(), time.Since(start), c.Method(), c.Path())
		return err
	}
}
