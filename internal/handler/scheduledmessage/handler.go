package scheduledmessage

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/botops-api/internal/handler"
	"github.com/jwalitptl/botops-api/internal/middleware"
	"github.com/jwalitptl/botops-api/internal/model"
	"github.com/jwalitptl/botops-api/internal/service/scheduledmessage"
)

type Handler struct {
	service  *scheduledmessage.Service
	validate *validator.Validate
}

func NewHandler(service *scheduledmessage.Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/scheduled-messages")
	{
		messages.POST("", h.Create)
		messages.GET("", h.List)
		messages.GET("/:id", h.Get)
		messages.POST("/:id/cancel", h.Cancel)
		messages.POST("/:id/pause", h.Pause)
		messages.POST("/:id/resume", h.Resume)
		messages.POST("/:id/reschedule", h.Reschedule)
	}
}

type createRequest struct {
	ChannelID      uuid.UUID             `json:"channel_id" validate:"required"`
	ContactID      *uuid.UUID            `json:"contact_id"`
	ConversationID *uuid.UUID            `json:"conversation_id"`
	Content        string                `json:"content" validate:"required"`
	ContentType    string                `json:"content_type"`
	Attachments    []string              `json:"attachments"`
	ScheduledFor   time.Time             `json:"scheduled_for" validate:"required"`
	ScheduleType   model.ScheduleType    `json:"schedule_type" validate:"required"`
	Recurrence     *model.RecurrenceSpec `json:"recurrence"`
	Trigger        *model.TriggerSpec    `json:"trigger"`
	MaxRetries     int                   `json:"max_retries"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)
	msg := &model.ScheduledMessage{
		OrganizationID: orgID,
		ChannelID:      req.ChannelID,
		ContactID:      req.ContactID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ContentType:    req.ContentType,
		Attachments:    req.Attachments,
		ScheduledFor:   req.ScheduledFor,
		ScheduleType:   req.ScheduleType,
		Recurrence:     req.Recurrence,
		Trigger:        req.Trigger,
		MaxRetries:     req.MaxRetries,
	}

	if err := h.service.Create(c.Request.Context(), msg); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(msg))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	msg, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) List(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)

	filter := model.ScheduledMessageFilter{OrganizationID: orgID}
	if status := c.Query("status"); status != "" {
		filter.Status = model.MessageStatus(status)
	}
	if st := c.Query("schedule_type"); st != "" {
		filter.ScheduleType = model.ScheduleType(st)
	}
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	msgs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.service.Pause)
}

func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.service.Resume)
}

type rescheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Reschedule(c.Request.Context(), id, req.ScheduledFor); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
