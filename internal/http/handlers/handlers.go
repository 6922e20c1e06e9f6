package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-habit-mail/internal/http/middleware"
	"github.com/tbourn/go-habit-mail/internal/queue"
	"github.com/tbourn/go-habit-mail/internal/repo"
	"github.com/tbourn/go-habit-mail/internal/utils"
	"github.com/tbourn/go-habit-mail/internal/worker"
)

// Queue is the subset of the processing queue the HTTP surface uses.
type Queue interface {
	Enqueue(ctx context.Context, e queue.Email) (bool, error)
	Seen(ctx context.Context, messageID string) (bool, error)
	Get(ctx context.Context, id string) (*queue.Item, error)
	Stats(ctx context.Context) (queue.Stats, error)
	List(ctx context.Context, status string, page, pageSize int) ([]queue.Item, int64, error)
}

// WorkerStats exposes the worker's counters. It may be nil when the worker
// is disabled.
type WorkerStats interface {
	Stats() worker.Stats
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	queue   Queue
	worker  WorkerStats
	service string
	started time.Time
	now     func() time.Time
}

// New returns Handlers bound to q. service names the process in /health.
func New(q Queue, w WorkerStats, service string) *Handlers {
	return &Handlers{queue: q, worker: w, service: service, started: time.Now(), now: time.Now}
}

// InboundRequest is an email delivered by a webhook provider.
//
// MessageID falls back to the Idempotency-Key header, then to a generated id.
type InboundRequest struct {
	MessageID  string     `json:"message_id"`
	From       string     `json:"from"      binding:"required,email,max=320"`
	FromName   string     `json:"from_name" binding:"max=255"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"      binding:"required"`
	ReceivedAt *time.Time `json:"received_at"`
}

// InboundResponse reports where the email landed in the queue.
type InboundResponse struct {
	MessageID string `json:"message_id"`
	Queued    bool   `json:"queued"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListInboundResponse is a page of queued items.
type ListInboundResponse struct {
	Items      []queue.Item `json:"items"`
	Pagination Pagination   `json:"pagination"`
}

// listStatuses are the accepted ?status= filters.
var listStatuses = map[string]bool{
	"": true, "new": true, "processing": true, "failed": true, "replied": true, queue.StatusDeadLetter: true,
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status        string        `json:"status"`
	Service       string        `json:"service"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Goroutines    int           `json:"goroutines"`
	HeapAlloc     uint64        `json:"heap_alloc_bytes"`
	Queue         *queue.Stats  `json:"queue,omitempty"`
	Worker        *worker.Stats `json:"worker,omitempty"`
}

// PostInbound enqueues a webhook-delivered email. New emails get 201; a
// message id that is already queued gets 200 with queued=false.
//
// PostInbound godoc
// @ID          postInbound
// @Summary     Queue an inbound email
// @Description Stores a webhook-delivered email for the worker. The message id falls back to the Idempotency-Key header, then to a generated id.
// @Description A key that was already accepted is answered with 200 and Idempotency-Replayed: true.
// @Tags        Inbound
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                   false  "Message id of the email"  example(<CAF=x1@mail.example.com>)
// @Param       body             body    handlers.InboundRequest  true   "Inbound email"
//
// @Success     201  {object}  handlers.InboundResponse  "Queued"
// @Success     200  {object}  handlers.InboundResponse  "Already queued"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse    "Missing or invalid token"
// @Failure     429  {object}  handlers.ErrorResponse    "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse    "Could not queue email"
// @Router      /inbound [post]
func (h *Handlers) PostInbound(c *gin.Context) {
	var req InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from and body are required")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must not be blank")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	id := req.MessageID
	if strings.TrimSpace(id) == "" {
		id = key
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString() + "@inbound"
	}
	id = queue.NormalizeMessageID(id)

	// The replay flag is about the key; a body naming another email is new.
	if middleware.IsReplay(c) && queue.NormalizeMessageID(key) == id {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, InboundResponse{MessageID: id})
		return
	}

	e := queue.Email{
		MessageID: id,
		From:      req.From,
		FromName:  strings.TrimSpace(req.FromName),
		Subject:   req.Subject,
		Body:      req.Body,
	}
	if req.ReceivedAt != nil {
		e.ReceivedAt = *req.ReceivedAt
	}

	created, err := h.queue.Enqueue(c.Request.Context(), e)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, "could not queue email")
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	ok(c, status, InboundResponse{MessageID: id, Queued: created})
}

// GetInbound godoc
// @ID          getInbound
// @Summary     Get a queued email
// @Tags        Inbound
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Item ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.InboundEmail
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid id"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inbound/{id} [get]
func (h *Handlers) GetInbound(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a UUID")
		return
	}
	it, err := h.queue.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load item")
	default:
		ok(c, http.StatusOK, it)
	}
}

// ListInbound returns a page of queued items, newest first. The optional
// status filter uses effective statuses, so dead_letter is distinct from
// failed.
//
// ListInbound godoc
// @ID          listInbound
// @Summary     List queued emails
// @Tags        Inbound
// @Produce     json
// @Security    BearerAuth
// @Param       status     query     string  false  "Effective status"  Enums(new, processing, failed, replied, dead_letter)
// @Param       page       query     int     false  "Page (1-based)"    minimum(1) default(1)
// @Param       page_size  query     int     false  "Page size"         minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListInboundResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status filter"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inbound [get]
func (h *Handlers) ListInbound(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if !listStatuses[status] {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
		return
	}
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), 20, 100)

	items, total, err := h.queue.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list items")
		return
	}
	if items == nil {
		items = []queue.Item{}
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListInboundResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// QueueStats godoc
// @ID          queueStats
// @Summary     Queue counts per status
// @Tags        Queue
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  queue.Stats
// @Failure     500  {object}  handlers.ErrorResponse  "Could not read queue stats"
// @Router      /queue/stats [get]
func (h *Handlers) QueueStats(c *gin.Context) {
	st, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not read queue stats")
		return
	}
	ok(c, http.StatusOK, st)
}

// Health reports liveness with process, queue and worker stats. A queue read
// failure degrades the status but still answers 200.
//
// Health godoc
// @ID          health
// @Summary     Liveness and queue summary
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := HealthResponse{
		Status:        "ok",
		Service:       h.service,
		UptimeSeconds: h.now().Sub(h.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAlloc:     mem.HeapAlloc,
	}
	if h.queue != nil {
		if st, err := h.queue.Stats(c.Request.Context()); err == nil {
			resp.Queue = &st
		} else {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: queue stats")
			resp.Status = "degraded"
		}
	}
	if h.worker != nil {
		ws := h.worker.Stats()
		resp.Worker = &ws
	}
	ok(c, http.StatusOK, resp)
}
