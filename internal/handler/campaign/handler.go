package campaign

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
	"github.com/jwalitptl/botops-api/internal/service/campaign"
)

type Handler struct {
	service  *campaign.Service
	validate *validator.Validate
}

func NewHandler(service *campaign.Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns")
	{
		campaigns.POST("", h.Create)
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.Get)
		campaigns.GET("/:id/stats", h.Stats)
		campaigns.POST("/:id/recipients", h.AddRecipients)
		campaigns.POST("/:id/queue", h.Queue)
		campaigns.POST("/:id/pause", h.Pause)
		campaigns.POST("/:id/resume", h.Resume)
		campaigns.POST("/:id/cancel", h.Cancel)
	}
}

type createRequest struct {
	Name              string     `json:"name" validate:"required"`
	Content           string     `json:"content" validate:"required"`
	ContentType       string     `json:"content_type"`
	Attachments       []string   `json:"attachments"`
	ScheduledFor      *time.Time `json:"scheduled_for"`
	MessagesPerMinute int        `json:"messages_per_minute" validate:"gte=0"`
	DelayBetweenMs    int        `json:"delay_between_ms" validate:"gte=0"`
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
	cmp := &model.Campaign{
		OrganizationID:    orgID,
		Name:              req.Name,
		Content:           req.Content,
		ContentType:       req.ContentType,
		Attachments:       req.Attachments,
		ScheduledFor:      req.ScheduledFor,
		MessagesPerMinute: req.MessagesPerMinute,
		DelayBetweenMs:    req.DelayBetweenMs,
	}

	if err := h.service.Create(c.Request.Context(), cmp); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(cmp))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	cmp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(cmp))
}

func (h *Handler) List(c *gin.Context) {
	orgID := c.MustGet(middleware.ContextOrganizationID).(uuid.UUID)

	filter := model.CampaignFilter{OrganizationID: orgID}
	if status := c.Query("status"); status != "" {
		filter.Status = model.CampaignStatus(status)
	}
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	campaigns, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Stats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

type addRecipientsRequest struct {
	Recipients []struct {
		ChannelID uuid.UUID `json:"channel_id" validate:"required"`
		ContactID uuid.UUID `json:"contact_id" validate:"required"`
	} `json:"recipients" validate:"required,min=1,dive"`
}

func (h *Handler) AddRecipients(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}

	var req addRecipientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	recipients := make([]*model.CampaignRecipient, len(req.Recipients))
	for i, r := range req.Recipients {
		recipients[i] = &model.CampaignRecipient{
			ChannelID: r.ChannelID,
			ContactID: r.ContactID,
		}
	}

	if err := h.service.AddRecipients(c.Request.Context(), id, recipients); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"added": len(recipients)}))
}

func (h *Handler) Queue(c *gin.Context) {
	h.transition(c, h.service.Queue)
}

func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.service.Pause)
}

func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.service.Resume)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid campaign ID"))
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
