package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-admin/internal/actions"
	"order-admin/internal/aftersale"
	"order-admin/internal/domain"
	"order-admin/internal/infra"
	"order-admin/internal/services"
)

const (
	UserHeader = "X-User-ID"
	userKey    = "userID"
)

type Handler struct {
	service *services.OrderService
	log     *zap.Logger
}

func NewHandler(s *services.OrderService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: s, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1", requireUser())
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/:id/timeline", h.GetTimeline)
	api.POST("/orders/:id/actions/:action", h.PerformAction)
	api.POST("/orders/:id/events", h.AppendEvent)
	api.POST("/orders/:id/refund", h.Refund)
	api.POST("/orders/:id/return", h.Return)
	api.POST("/customers/history", h.CustomerHistory)
	api.GET("/files/download", h.Download)
}

// requireUser takes the caller from the X-User-ID header set by the
// authenticating proxy.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": services.ErrMissingUser.Error()})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func (h *Handler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := services.ListParams{
		Page:     q.Page,
		PageSize: q.PageSize,
		Filters: domain.OrderFilters{
			SearchQuery:   q.Search,
			Status:        q.Status,
			RiskScore:     q.Risk,
			PaymentMethod: q.PaymentMethod,
		},
	}
	page, err := h.service.ListOrders(c.Request.Context(), c.GetString(userKey), params)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := ListOrdersResponse{Orders: page.Orders, TotalCount: page.TotalCount, Page: q.Page, PageSize: q.PageSize}
	if resp.Page < 1 {
		resp.Page = 1
	}
	if resp.PageSize <= 0 {
		resp.PageSize = services.DefaultPageSize
	} else if resp.PageSize > services.MaxPageSize {
		resp.PageSize = services.MaxPageSize
	}
	if resp.Orders == nil {
		resp.Orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	detail, err := h.service.GetOrderDetail(c.Request.Context(), c.GetString(userKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetTimeline(c *gin.Context) {
	entries, err := h.service.GetTimeline(c.Request.Context(), c.GetString(userKey), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

func (h *Handler) PerformAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := actions.Action(c.Param("action"))
	detail, err := h.service.PerformAction(c.Request.Context(), c.GetString(userKey), c.Param("id"), action, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) AppendEvent(c *gin.Context) {
	var req AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.service.AppendEvent(c.Request.Context(), c.GetString(userKey), c.Param("id"), req.EventType, req.Payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Refund(c.Request.Context(), c.GetString(userKey), c.Param("id"), req.Amount, req.Note); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "refunded"})
}

func (h *Handler) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.Return(c.Request.Context(), c.GetString(userKey), c.Param("id"), services.ReturnRequest{
		Payer:          req.Payer,
		CustomerAmount: req.CustomerAmount,
		ShopAmount:     req.ShopAmount,
		Note:           req.Note,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "returned"})
}

func (h *Handler) CustomerHistory(c *gin.Context) {
	var req CustomerHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := h.service.CustomerHistory(c.Request.Context(), c.GetString(userKey), req.Phones)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) Download(c *gin.Context) {
	var q DownloadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.service.Download(c.Request.Context(), q.URL, q.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.Name})
	c.DataFromReader(http.StatusOK, f.Size, f.ContentType, f.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("order_id", c.Param("id")),
			zap.Error(err))
		_ = c.Error(err)
		msg := "internal error"
		if status == http.StatusBadGateway {
			msg = err.Error()
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrActionNotAllowed), errors.Is(err, actions.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnknownAction),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, actions.ErrReasonRequired),
		errors.Is(err, aftersale.ErrInvalidAmount),
		errors.Is(err, aftersale.ErrInvalidPayer):
		return http.StatusBadRequest
	case errors.Is(err, infra.ErrDownloadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
