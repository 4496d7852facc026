// Package httpapi exposes the discovery engine over HTTP with jsend
// envelopes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/beacon/internal/engine"
	"horse.fit/beacon/internal/event"
	"horse.fit/beacon/internal/globaltime"
)

const (
	dateLayout     = "2006-01-02"
	defaultResults = 10
	maxResults     = 100
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	engine *engine.Engine
	logger zerolog.Logger
	opts   Options
}

func NewServer(eng *engine.Engine, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		// Discovery fans out to slow upstreams; leave headroom for a
		// full provider round plus backfill.
		writeTimeout = 2 * time.Minute
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		engine: eng,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Handler builds the routed echo instance. Split from Start so tests
// can drive it without a listener.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}
			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/discover", s.handleDiscover)
	api.GET("/queries", s.handleQueries)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.engine == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("beacon api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("beacon api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "beacon",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleDiscover(c echo.Context) error {
	q, fieldErrors := parseQuery(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	result, err := s.engine.Discover(c.Request().Context(), q)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return failValidation(c, map[string]string{"date_range": verr.Reason})
		}
		s.logger.Error().Err(err).Msg("discovery failed")
		return internalError(c, "Discovery failed")
	}

	return success(c, map[string]any{
		"events":        result.Events,
		"count":         len(result.Events),
		"source_counts": result.SourceCounts,
		"cache_hit":     result.CacheHit,
	})
}

func (s *Server) handleQueries(c echo.Context) error {
	q, fieldErrors := parseQuery(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}
	return success(c, map[string]any{
		"queries": engine.PlanQueries(q.Location, q.Categories, q.Start, q.End),
	})
}

func parseQuery(c echo.Context) (event.Query, map[string]string) {
	fieldErrors := make(map[string]string)

	location := strings.TrimSpace(c.QueryParam("location"))
	if location == "" {
		fieldErrors["location"] = "location is required"
	}

	start, err := time.Parse(dateLayout, c.QueryParam("start_date"))
	if err != nil {
		fieldErrors["start_date"] = "start_date must be YYYY-MM-DD"
	}
	end, err := time.Parse(dateLayout, c.QueryParam("end_date"))
	if err != nil {
		fieldErrors["end_date"] = "end_date must be YYYY-MM-DD"
	}

	var categories []string
	if raw := strings.TrimSpace(c.QueryParam("categories")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				categories = append(categories, part)
			}
		}
	}

	limit := defaultResults
	if raw := strings.TrimSpace(c.QueryParam("max_results")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors["max_results"] = "max_results must be an integer"
		} else {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxResults {
		limit = maxResults
	}

	if len(fieldErrors) > 0 {
		return event.Query{}, fieldErrors
	}
	return event.Query{
		Location:   location,
		Categories: categories,
		Start:      start,
		End:        end,
		MaxResults: limit,
	}, nil
}
