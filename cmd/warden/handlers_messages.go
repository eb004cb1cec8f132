package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/messagestore"
	"github.com/galaxyguard/warden/automod/scoring"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
)

type CaptureRequest struct {
	Content string `json:"content"`
	// when the message was sent, in any common date format. defaults to now
	Timestamp   string          `json:"timestamp,omitempty"`
	UserID      string          `json:"userId"`
	Username    string          `json:"username,omitempty"`
	ChannelID   string          `json:"channelId"`
	ChannelName string          `json:"channelName,omitempty"`
	MessageType string          `json:"messageType,omitempty"`
	Platform    string          `json:"platform,omitempty"`
	Badges      []string        `json:"badges,omitempty"`
	Context     scoring.Context `json:"context"`
}

type ReviewRequest struct {
	Action      string   `json:"action"`
	Reason      string   `json:"reason,omitempty"`
	Severity    float64  `json:"severity"`
	Categories  []string `json:"categories,omitempty"`
	ModeratedBy string   `json:"moderatedBy"`
}

type MessagesResponse struct {
	Messages []*messagestore.Message `json:"messages"`
}

func messagesResponse(msgs []*messagestore.Message) MessagesResponse {
	if msgs == nil {
		msgs = []*messagestore.Message{}
	}
	return MessagesResponse{Messages: msgs}
}

func parseTimeParam(name, val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseAny(val)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t, nil
}

func parseIntParam(name, val string) (int, error) {
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// Query parameters shared by the message listing endpoints.
func parseMessageQuery(c echo.Context) (messagestore.Query, error) {
	var q messagestore.Query
	var err error
	if q.Limit, err = parseIntParam("limit", c.QueryParam("limit")); err != nil {
		return q, err
	}
	if q.Offset, err = parseIntParam("offset", c.QueryParam("offset")); err != nil {
		return q, err
	}
	if q.Since, err = parseTimeParam("since", c.QueryParam("since")); err != nil {
		return q, err
	}
	if q.Until, err = parseTimeParam("until", c.QueryParam("until")); err != nil {
		return q, err
	}
	q.ModeratedOnly = c.QueryParam("moderatedOnly") == "true"
	if cats := c.QueryParam("categories"); cats != "" {
		for _, cat := range strings.Split(cats, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				q.Categories = append(q.Categories, cat)
			}
		}
	}
	return q, nil
}

func (srv *Server) HandleCaptureMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req CaptureRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}
	ts, err := parseTimeParam("timestamp", req.Timestamp)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ts.IsZero() {
		moderationLag.Observe(time.Since(ts).Seconds())
	}

	capt, err := srv.engine.CaptureAndModerate(ctx, messagestore.Message{
		Content:     req.Content,
		Timestamp:   ts,
		UserID:      req.UserID,
		Username:    req.Username,
		ChannelID:   req.ChannelID,
		ChannelName: req.ChannelName,
		MessageType: req.MessageType,
		Platform:    req.Platform,
		Badges:      req.Badges,
	}, req.Context)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, capt)
}

func (srv *Server) HandleGetMessage(c echo.Context) error {
	ctx := c.Request().Context()

	m, err := srv.engine.GetMessage(ctx, c.Param("id"))
	if err != nil {
		return srv.engineError(c, err)
	}
	if m == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "MessageNotFound",
			Message: "no such message",
		})
	}
	return c.JSON(http.StatusOK, m)
}

func (srv *Server) HandleReviewMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, fmt.Sprintf("invalid request body: %s", err))
	}
	act, err := action.Parse(req.Action)
	if err != nil {
		return badRequest(c, err.Error())
	}
	m, err := srv.engine.ReviewMessage(ctx, c.Param("id"), messagestore.Moderation{
		Action:      act,
		Reason:      req.Reason,
		Severity:    req.Severity,
		Categories:  req.Categories,
		ModeratedBy: req.ModeratedBy,
	})
	if err != nil {
		return srv.engineError(c, err)
	}
	if m == nil {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "MessageNotFound",
			Message: "no such message",
		})
	}
	return c.JSON(http.StatusOK, m)
}

func (srv *Server) HandleChannelMessages(c echo.Context) error {
	ctx := c.Request().Context()

	q, err := parseMessageQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	out, err := srv.engine.ChannelMessages(ctx, c.Param("channel"), q)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, messagesResponse(out))
}

func (srv *Server) HandleTrainingData(c echo.Context) error {
	ctx := c.Request().Context()

	q, err := parseMessageQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	out, err := srv.engine.TrainingData(ctx, q)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, messagesResponse(out))
}
