package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/usecase"
)

type decisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
}

func (r decisionRequest) input() usecase.DecisionInput {
	return usecase.DecisionInput{Decision: r.Decision, Reason: r.Reason, Actor: r.Actor}
}

type bulkDecisionRequest struct {
	decisionRequest
	RequestIDs []int64 `json:"request_ids"`
}

type queueResponse struct {
	Requests []domain.ModerationRequest `json:"requests"`
}

type bulkDecisionResponse struct {
	Decisions []domain.ModerationDecision `json:"decisions"`
}

type historyResponse struct {
	Decisions []domain.ModerationDecision `json:"decisions"`
	Limit     int                         `json:"limit"`
	Offset    int                         `json:"offset"`
}

// GET /api/moderation/queue
func (s *Server) moderationQueue(c echo.Context) error {
	requests, err := s.moderation.Queue(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}
	if requests == nil {
		requests = []domain.ModerationRequest{}
	}
	return c.JSON(http.StatusOK, queueResponse{Requests: requests})
}

// GET /api/moderation/requests/:id
func (s *Server) moderationRequest(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return mapDomainError(err)
	}
	request, err := s.moderation.Request(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, request)
}

// POST /api/moderation/requests/:id/decision
func (s *Server) decide(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return mapDomainError(err)
	}
	var body decisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	decision, err := s.moderation.Decide(c.Request().Context(), id, body.input())
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, decision)
}

// POST /api/moderation/requests/bulk-decision
func (s *Server) bulkDecision(c echo.Context) error {
	var body bulkDecisionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	decisions, err := s.moderation.BulkDecide(c.Request().Context(), body.RequestIDs, body.input())
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, bulkDecisionResponse{Decisions: decisions})
}

// GET /api/moderation/history
func (s *Server) moderationHistory(c echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return mapDomainError(err)
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return mapDomainError(err)
	}

	query := usecase.HistoryQuery{
		Status:    c.QueryParam("status"),
		Workspace: c.QueryParam("workspace"),
		Actor:     c.QueryParam("actor"),
		Limit:     limit,
		Offset:    offset,
	}
	decisions, err := s.moderation.History(c.Request().Context(), query)
	if err != nil {
		return mapDomainError(err)
	}
	if decisions == nil {
		decisions = []domain.ModerationDecision{}
	}
	if query.Limit == 0 {
		query.Limit = usecase.DefaultHistoryLimit
	}
	return c.JSON(http.StatusOK, historyResponse{Decisions: decisions, Limit: query.Limit, Offset: query.Offset})
}

// GET /api/moderation/notifications (websocket)
func (s *Server) notificationStream(c echo.Context) error {
	return s.stream(c, usecase.ModerationTopic, func() (any, error) {
		return usecase.ModerationConnectedEvent{Type: usecase.EventModerationConnected}, nil
	})
}

func requestID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: request id must be a positive integer", domain.ErrInvalid)
	}
	return id, nil
}
