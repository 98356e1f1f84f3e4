// Package api is the thin HTTP transport adapter over the dialogue core.
// It is deliberately minimal (§9): its only job is to decode a turn,
// call handle_turn, and encode the Reply — all dialogue logic lives in
// internal/dialogue.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xrick/laptop-funnel-dialogue/internal/config"
	"github.com/xrick/laptop-funnel-dialogue/internal/dialogue"
)

type Server struct {
	echo *echo.Echo
	cfg  *config.Config
	core *dialogue.Dialogue
}

func NewServer(cfg *config.Config, core *dialogue.Dialogue) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{echo: e, cfg: cfg, core: core}
	s.setupRoutes()
	return s
}

type turnRequest struct {
	Query               string            `json:"query,omitempty"`
	BatchRequested      bool              `json:"batch_requested,omitempty"`
	SessionID           string            `json:"session_id,omitempty"`
	StepIndex           int               `json:"step_index,omitempty"`
	OptionID            string            `json:"option_id,omitempty"`
	BatchAnswers        map[string]string `json:"batch_answers,omitempty"`
	IsFunnelAnswer      bool              `json:"is_funnel_answer,omitempty"`
	IsFunnelBatchAnswer bool              `json:"is_funnel_batch_answer,omitempty"`
	IsFunnelRequestCurrent bool           `json:"is_funnel_request_current,omitempty"`
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	s.echo.POST("/turn", s.handleTurn)
}

func (s *Server) handleTurn(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	in := dialogue.Input{
		Query:                  req.Query,
		BatchRequested:         req.BatchRequested,
		FunnelSessionID:        req.SessionID,
		FunnelStepIndex:        req.StepIndex,
		FunnelOptionID:         req.OptionID,
		FunnelBatchAnswers:     req.BatchAnswers,
		IsFunnelAnswer:         req.IsFunnelAnswer,
		IsFunnelBatch:          req.IsFunnelBatchAnswer,
		IsFunnelRequestCurrent: req.IsFunnelRequestCurrent,
	}

	reply := s.core.HandleTurn(c.Request().Context(), in)
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) Start(context.Context) error {
	addr := ":" + s.cfg.Server.Port
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
