package query

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes the Service over HTTP:
//
//	GET /sources/{sourceSystem}/objects
//	GET /objects?container=...&start=...&end=...
type Server struct {
	service *Service
	logger  *zap.Logger
}

func NewServer(service *Service, logger *zap.Logger) *Server {
	return &Server{
		service: service,
		logger:  logger,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logMiddleware)

	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.health)
	r.Get("/sources/{sourceSystem}/objects", s.listBySource)
	r.Get("/objects", s.listByContainer)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listBySource(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the parameter escaped.
	sourceSystem := chi.URLParam(r, "sourceSystem")
	if r.URL.RawPath != "" {
		if v, err := url.PathUnescape(sourceSystem); err == nil {
			sourceSystem = v
		}
	}
	page, err := s.service.BySource(r.Context(), sourceSystem)
	s.respond(w, r, page, err)
}

func (s *Server) listByContainer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	container := q.Get("container")
	if container == "" {
		container = q.Get("bucket")
	}

	page, err := s.service.ByContainer(r.Context(), container, q.Get("start"), q.Get("end"))
	s.respond(w, r, page, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, page Page, err error) {
	if err != nil && StatusCode(err) >= http.StatusInternalServerError {
		s.logger.Error("query failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	NewResponse(page, err).Write(w)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				zap.String("from", r.RemoteAddr),
				zap.String("protocol", r.Proto),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("starting query server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down query server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
