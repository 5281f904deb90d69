package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ava-labs/window-average-service/pkg/slidingwindow"
	"github.com/ava-labs/window-average-service/pkg/source"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// HeaderResponseTime carries the upstream fetch time of /numbers.
const HeaderResponseTime = "X-Response-Time-Ms"

// MaxRequestedSize bounds window sizes accepted over HTTP.
const MaxRequestedSize = 20

type errorResponse struct {
	Error string `json:"error"`
}

type sizeRequest struct {
	WindowSize int `json:"windowSize" validate:"min=1,max=20"`
}

type sizeResponse struct {
	WindowSize int `json:"windowSize"`
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) getNumbers(c *gin.Context) {
	category, err := source.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if !s.pending.TryAcquire(1) {
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many pending updates"})
		return
	}
	defer s.pending.Release(1)

	out, err := s.engine.Update(c.Request.Context(), category)
	if err != nil {
		var fetchErr *slidingwindow.FetchError
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: fetchErr.Error()})
			return
		}
		s.log.Errorw("unexpected update error", "category", category.Name(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if s.sink != nil {
		// Delivery must not depend on the client staying connected.
		ctx := context.WithoutCancel(c.Request.Context())
		if err := s.sink.Publish(ctx, out); err != nil {
			c.Header("X-Outcome-Published", "false")
		}
	}

	c.Header(HeaderResponseTime, strconv.FormatInt(out.ElapsedMs, 10))
	c.JSON(http.StatusOK, out)
}

func (s *Server) getWindow(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Window().State())
}

func (s *Server) putWindowSize(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: "windowSize must be between 1 and " + strconv.Itoa(MaxRequestedSize),
			})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.engine.SetSize(req.WindowSize); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sizeResponse{WindowSize: req.WindowSize})
}

func (s *Server) probe(c *gin.Context) {
	category, err := source.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, source.Probe(c.Request.Context(), s.gateway, category, s.engine.Deadline()))
}

// probeAll probes every category concurrently.
func (s *Server) probeAll(c *gin.Context) {
	results := make([]source.ProbeResult, len(source.Categories))
	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, category := range source.Categories {
		g.Go(func() error {
			results[i] = source.Probe(ctx, s.gateway, category, s.engine.Deadline())
			return nil
		})
	}
	_ = g.Wait() // probes report failures in their results
	c.JSON(http.StatusOK, results)
}
