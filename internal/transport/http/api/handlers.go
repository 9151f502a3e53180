package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"council/internal/events"
	"council/internal/execution"
	"council/internal/jobs"
	"council/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	svc      Service
	events   events.Lister
	accounts *execution.Registry
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.POST("/council", h.handleCouncil)
	group.POST("/trades", h.handleTrade)
	group.GET("/jobs", h.handleJobs)
	group.GET("/jobs/:id", h.handleJob)
	group.GET("/events", h.handleEvents)
	group.GET("/accounts", h.handleAccounts)
}

type councilRequest struct {
	Query string `json:"query"`
}

func (h *handlers) handleCouncil(c *gin.Context) {
	var req councilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if isAsync(c) {
		h.submit(c, orchestrator.KindCouncil, req.Query)
		return
	}
	out, err := h.svc.Deliberate(c.Request.Context(), req.Query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) handleTrade(c *gin.Context) {
	var req orchestrator.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if isAsync(c) {
		h.submit(c, orchestrator.KindTrade, req)
		return
	}
	out, err := h.svc.Trade(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) submit(c *gin.Context, kind string, payload any) {
	job, err := h.svc.Submit(c.Request.Context(), kind, payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *handlers) handleJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.svc.Jobs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (h *handlers) handleJob(c *gin.Context) {
	job, err := h.svc.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handlers) handleEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event log is not readable"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	list, err := h.events.List(c.Request.Context(), events.Filter{
		WeekID:  strings.TrimSpace(c.Query("week")),
		Account: strings.TrimSpace(c.Query("account")),
		RunID:   strings.TrimSpace(c.Query("run")),
		Limit:   limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

type accountView struct {
	Name              string `json:"name"`
	Baseline          bool   `json:"baseline"`
	Paper             bool   `json:"paper"`
	BaseQuantity      string `json:"base_quantity"`
	QuantityStep      string `json:"quantity_step"`
	OrderType         string `json:"order_type"`
	ScaleByConviction bool   `json:"scale_by_conviction"`
}

func (h *handlers) handleAccounts(c *gin.Context) {
	views := []accountView{}
	if h.accounts != nil {
		for _, a := range h.accounts.Accounts() {
			views = append(views, accountView{
				Name:              a.Name,
				Baseline:          a.Baseline,
				Paper:             a.Credentials.Paper,
				BaseQuantity:      a.BaseQuantity.String(),
				QuantityStep:      a.QuantityStep.String(),
				OrderType:         a.OrderType,
				ScaleByConviction: a.ScaleByConviction,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

func isAsync(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery("async", "0"))
	return v
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrEmptyQuery),
		errors.Is(err, orchestrator.ErrNoAccounts),
		errors.Is(err, orchestrator.ErrUnknownKind),
		errors.Is(err, orchestrator.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
