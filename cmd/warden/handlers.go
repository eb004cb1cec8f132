package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/engine"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/automod/strikes"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ModerateRequest struct {
	Content string          `json:"content"`
	UserID  string          `json:"userId"`
	Context scoring.Context `json:"context"`
	// when the message was sent, in any common date format. optional, used for lag metrics
	SentAt string `json:"sentAt,omitempty"`
}

type EvaluateScoresRequest struct {
	Scores scoring.ScoreMap `json:"scores"`
	// optional; when set, the user's threshold override applies
	UserID string `json:"userId,omitempty"`
}

type TrustRequest struct {
	TrustScore *float64 `json:"trustScore"`
}

type RecentHistoriesResponse struct {
	Histories []*strikes.History `json:"histories"`
}

// Maps an engine error to an HTTP status and error name.
func errorStatus(err error) (int, string) {
	switch moderr.KindOf(err) {
	case moderr.KindValidation:
		return http.StatusBadRequest, "InvalidRequest"
	case moderr.KindDependency:
		return http.StatusBadGateway, "UpstreamFailure"
	case moderr.KindMalformed:
		return http.StatusBadGateway, "MalformedUpstreamResponse"
	case moderr.KindConfiguration:
		return http.StatusInternalServerError, "ConfigurationError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (srv *Server) engineError(c echo.Context, err error) error {
	code, name := errorStatus(err)
	if code >= 500 {
		srv.logger.Warn("warden-engine-error", "path", c.Path(), "kind", moderr.KindOf(err).String(), "err", err)
	}
	return c.JSON(code, GenericError{
		Error:   name,
		Message: err.Error(),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, GenericError{
		Error:   "InvalidRequest",
		Message: msg,
	})
}

func (srv *Server) HandleModerate(c echo.Context) error {
	ctx := c.Request().Context()

	var req ModerateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}

	if req.SentAt != "" {
		sentAt, err := dateparse.ParseAny(req.SentAt)
		if err != nil {
			return badRequest(c, fmt.Sprintf("invalid sentAt: %s", err))
		}
		moderationLag.Observe(time.Since(sentAt).Seconds())
	}

	res, err := srv.engine.Evaluate(ctx, req.Content, req.Context, req.UserID)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (srv *Server) HandleEvaluateScores(c echo.Context) error {
	ctx := c.Request().Context()

	var req EvaluateScoresRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}

	res, err := srv.engine.EvaluateScoresFor(ctx, req.UserID, req.Scores)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (srv *Server) HandleGetHistory(c echo.Context) error {
	ctx := c.Request().Context()

	st, err := srv.engine.Standing(ctx, c.Param("user"))
	if err != nil {
		return srv.engineError(c, err)
	}
	if st == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "HistoryNotFound",
			Message: "no moderation history for user",
		})
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) HandleClearInfractions(c echo.Context) error {
	ctx := c.Request().Context()

	if err := srv.engine.ClearInfractions(ctx, c.Param("user")); err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (srv *Server) HandleSetTrust(c echo.Context) error {
	ctx := c.Request().Context()

	var req TrustRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}
	if req.TrustScore == nil {
		return badRequest(c, "trustScore is required")
	}
	hist, err := srv.engine.SetTrustScore(ctx, c.Param("user"), *req.TrustScore)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (srv *Server) HandleGetSettings(c echo.Context) error {
	ctx := c.Request().Context()

	o, err := srv.engine.GetSettings(ctx, c.Param("user"))
	if err != nil {
		return srv.engineError(c, err)
	}
	if o == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "SettingsNotFound",
			Message: "no threshold override for user",
		})
	}
	return c.JSON(http.StatusOK, o)
}

func (srv *Server) HandlePutSettings(c echo.Context) error {
	ctx := c.Request().Context()

	var o config.Override
	if err := c.Bind(&o); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}
	if err := srv.engine.PutSettings(ctx, c.Param("user"), o); err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (srv *Server) HandleDeleteSettings(c echo.Context) error {
	ctx := c.Request().Context()

	if err := srv.engine.DeleteSettings(ctx, c.Param("user")); err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (srv *Server) HandleRecentHistories(c echo.Context) error {
	ctx := c.Request().Context()

	limit := engine.DefaultRecentLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	out, err := srv.engine.RecentHistories(ctx, limit)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, RecentHistoriesResponse{Histories: out})
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("warden-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "warden", Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}
