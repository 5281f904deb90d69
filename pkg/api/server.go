package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"github.com/ava-labs/window-average-service/pkg/source"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxPending bounds the /numbers requests waiting on the engine.
const DefaultMaxPending = 64

// OutcomeSink receives every successful outcome. Implementations log their
// own failures.
type OutcomeSink interface {
	Publish(ctx context.Context, out *slidingwindow.Outcome) error
}

// Server serves the window API.
type Server struct {
	log      *zap.SugaredLogger
	engine   *slidingwindow.Engine
	gateway  source.Gateway
	sink     OutcomeSink
	validate *validator.Validate

	// Updates are serialized by the engine; this caps how many may queue.
	pending *semaphore.Weighted

	router     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router. gw is used for probes and should be the
// gateway the engine fetches from. sink may be nil. Requests to /numbers
// beyond maxPending are rejected with 429.
func NewServer(
	addr string,
	log *zap.SugaredLogger,
	engine *slidingwindow.Engine,
	gw source.Gateway,
	sink OutcomeSink,
	maxPending int64,
) (*Server, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if engine == nil {
		return nil, errors.New("invalid engine: must not be nil")
	}
	if gw == nil {
		return nil, errors.New("invalid gateway: must not be nil")
	}
	if maxPending <= 0 {
		return nil, errors.New("invalid max pending: must be greater than 0")
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(log.Desugar(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log.Desugar(), true))

	s := &Server{
		log:      log,
		engine:   engine,
		gateway:  gw,
		sink:     sink,
		validate: validator.New(),
		pending:  semaphore.NewWeighted(maxPending),
		router:   router,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/numbers/:category", s.getNumbers)
	s.router.GET("/probe", s.probeAll)
	s.router.GET("/probe/:category", s.probe)

	window := s.router.Group("/window")
	window.GET("", s.getWindow)
	window.PUT("/size", s.putWindowSize)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving. This is non-blocking.
// Returns a channel that receives an error if the server fails.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
