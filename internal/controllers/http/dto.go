package http

import "order-admin/internal/domain"

type ListOrdersQuery struct {
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
	Search        string `form:"q"`
	Status        string `form:"status"`
	Risk          string `form:"risk"`
	PaymentMethod string `form:"payment_method"`
}

type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}

type ActionRequest struct {
	Reason string `json:"reason"`
}

type AppendEventRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Payload   map[string]any `json:"payload"`
}

type RefundRequest struct {
	Amount string `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

type ReturnRequest struct {
	Payer          string `json:"payer"`
	CustomerAmount *int64 `json:"customer_amount"`
	ShopAmount     int64  `json:"shop_amount"`
	Note           string `json:"note"`
}

type CustomerHistoryRequest struct {
	Phones []string `json:"phones" binding:"required"`
}

type DownloadQuery struct {
	URL      string `form:"url" binding:"required"`
	Filename string `form:"filename"`
}
