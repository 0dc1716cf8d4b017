package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"order-admin/internal/actions"
	"order-admin/internal/aftersale"
	"order-admin/internal/domain"
	"order-admin/internal/infra"
	"order-admin/internal/mocks"
	"order-admin/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	repo   *mocks.MockOrderRepository
	dl     *mocks.MockDownloader
	pub    *mocks.MockPublisher
	svc    *services.OrderService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo: new(mocks.MockOrderRepository),
		dl:   new(mocks.MockDownloader),
		pub:  new(mocks.MockPublisher),
	}
	env.svc = services.NewOrderService(env.repo, env.dl, env.pub)
	env.router = gin.New()
	NewHandler(env.svc, nil).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(UserHeader, "user-1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func pendingOrder() *domain.Order {
	return &domain.Order{ID: "o-1", UserID: "user-1", Status: domain.StatusPendingReview, PaymentMethod: "COD"}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequireUser(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.repo.AssertNotCalled(t, "FindByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv()
	filters := domain.OrderFilters{SearchQuery: "lan", Status: "DELIVERING", RiskScore: "high", PaymentMethod: "cod"}
	env.repo.On("FindByUser", mock.Anything, "user-1", 2, 100, filters).
		Return(&domain.OrderPage{Orders: []domain.Order{*pendingOrder()}, TotalCount: 101}, nil)

	w := env.do(http.MethodGet, "/api/v1/orders?page=2&page_size=1000&q=lan&status=DELIVERING&risk=high&payment_method=cod", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ListOrdersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 101, resp.TotalCount)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 100, resp.PageSize)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "o-1", resp.Orders[0].ID)
}

func TestListOrders_BadQuery(t *testing.T) {
	env := newTestEnv()
	w := env.do(http.MethodGet, "/api/v1/orders?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(pendingOrder(), nil)
	env.repo.On("FindEvents", mock.Anything, "o-1").Return([]domain.OrderEvent{}, nil)

	w := env.do(http.MethodGet, "/api/v1/orders/o-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Order    domain.Order      `json:"order"`
		Controls []actions.Control `json:"controls"`
		Timeline []map[string]any  `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "o-1", resp.Order.ID)
	require.Len(t, resp.Controls, 2)
	assert.Equal(t, actions.Reject, resp.Controls[0].Action)
	assert.Equal(t, "Approve", resp.Controls[1].Label)
	require.Len(t, resp.Timeline, 1)
	assert.Equal(t, true, resp.Timeline[0]["placeholder"])
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "nope").Return(nil, nil)
	env.repo.On("FindEvents", mock.Anything, "nope").Return([]domain.OrderEvent{}, nil)

	w := env.do(http.MethodGet, "/api/v1/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"order not found"}`, w.Body.String())
}

func TestGetOrder_RepositoryErrorIsHidden(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(nil, errors.New("dial tcp: connection refused"))
	env.repo.On("FindEvents", mock.Anything, "o-1").Return([]domain.OrderEvent{}, nil).Maybe()

	w := env.do(http.MethodGet, "/api/v1/orders/o-1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestGetTimeline(t *testing.T) {
	env := newTestEnv()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(pendingOrder(), nil)
	env.repo.On("FindEvents", mock.Anything, "o-1").Return([]domain.OrderEvent{
		{ID: "e1", EventType: "ORDER_SHIPPED", CreatedAt: at},
		{ID: "e2", EventType: "delivering", CreatedAt: at},
	}, nil)

	w := env.do(http.MethodGet, "/api/v1/orders/o-1/timeline", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Timeline []map[string]any `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Timeline, 1, "alias and canonical events in the same second collapse")
}

func TestPerformAction(t *testing.T) {
	tests := []struct {
		name       string
		order      *domain.Order
		path       string
		body       string
		setupMocks func(*testEnv)
		wantStatus int
	}{
		{
			name:  "reject with reason",
			order: pendingOrder(),
			path:  "/api/v1/orders/o-1/actions/reject",
			body:  `{"reason":"fake address"}`,
			setupMocks: func(env *testEnv) {
				rejected := pendingOrder()
				rejected.Status = domain.StatusOrderRejected
				env.repo.On("Update", mock.Anything, "o-1", "user-1", mock.Anything).Return(rejected, nil)
				env.repo.On("InsertEvent", mock.Anything, "o-1", domain.EventOrderRejected, map[string]any{"reason": "fake address"}).
					Return(&domain.OrderEvent{}, nil)
				env.pub.On("Publish", mock.Anything, "order.updated", mock.Anything).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "reject without body",
			order:      pendingOrder(),
			path:       "/api/v1/orders/o-1/actions/reject",
			setupMocks: func(*testEnv) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not legal for state",
			order:      pendingOrder(),
			path:       "/api/v1/orders/o-1/actions/mark_completed",
			setupMocks: func(*testEnv) {},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown action",
			path:       "/api/v1/orders/o-1/actions/teleport",
			setupMocks: func(*testEnv) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			path:       "/api/v1/orders/o-1/actions/approve",
			body:       `{"reason":`,
			setupMocks: func(*testEnv) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			if tt.order != nil {
				env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(tt.order, nil)
				env.repo.On("FindEvents", mock.Anything, "o-1").Return([]domain.OrderEvent{}, nil)
			}
			tt.setupMocks(env)

			w := env.do(http.MethodPost, tt.path, tt.body)
			env.svc.Wait()

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env.repo.AssertExpectations(t)
			env.pub.AssertExpectations(t)
		})
	}
}

func TestPerformAction_BusyIsConflict(t *testing.T) {
	env := newTestEnv()
	order := &domain.Order{ID: "o-1", UserID: "user-1", Status: domain.StatusDelivering, PaymentMethod: "BANK_TRANSFER"}
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(order, nil)
	env.repo.On("FindEvents", mock.Anything, "o-1").Return([]domain.OrderEvent{}, nil)
	env.repo.On("Update", mock.Anything, "o-1", "user-1", mock.Anything).Return(order, nil).Once()
	env.repo.On("InsertEvent", mock.Anything, "o-1", domain.EventOrderCompleted, mock.Anything).Return(&domain.OrderEvent{}, nil).Once()
	env.pub.On("Publish", mock.Anything, "order.updated", mock.Anything).Return(nil).Once()

	first := env.do(http.MethodPost, "/api/v1/orders/o-1/actions/mark_completed", "")
	second := env.do(http.MethodPost, "/api/v1/orders/o-1/actions/mark_completed", "")
	env.svc.Wait()

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "in flight")
}

func TestAppendEvent(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(pendingOrder(), nil)
	env.repo.On("InsertEvent", mock.Anything, "o-1", domain.EventRiskEvaluated, map[string]any{"score": float64(42)}).
		Return(&domain.OrderEvent{ID: "e1", OrderID: "o-1", EventType: domain.EventRiskEvaluated}, nil)
	env.pub.On("Publish", mock.Anything, "order.event_recorded", mock.Anything).Return(nil)

	w := env.do(http.MethodPost, "/api/v1/orders/o-1/events", `{"event_type":"RISK_EVALUATED","payload":{"score":42}}`)
	env.svc.Wait()

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env.repo.AssertExpectations(t)

	missing := env.do(http.MethodPost, "/api/v1/orders/o-1/events", `{"payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestRefund(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(pendingOrder(), nil)
	env.repo.On("ProcessRefund", mock.Anything, "o-1", int64(150000), "broken").Return(nil)

	w := env.do(http.MethodPost, "/api/v1/orders/o-1/refund", `{"amount":"150,000","note":"broken"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	bad := env.do(http.MethodPost, "/api/v1/orders/o-1/refund", `{"amount":"zero"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Contains(t, bad.Body.String(), aftersale.ErrInvalidAmount.Error())
}

func TestReturn(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindByID", mock.Anything, "user-1", "o-1").Return(pendingOrder(), nil)
	env.repo.On("ProcessReturn", mock.Anything, "user-1", "o-1", false, int64(0), int64(20000), "wrong size").Return(nil)

	w := env.do(http.MethodPost, "/api/v1/orders/o-1/return", `{"payer":"shop","customer_amount":40000,"shop_amount":20000,"note":"wrong size"}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	bad := env.do(http.MethodPost, "/api/v1/orders/o-1/return", `{"payer":"courier"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCustomerHistory(t *testing.T) {
	env := newTestEnv()
	env.repo.On("FindPastOrdersByPhones", mock.Anything, "user-1", []string{"0901"}).Return([]domain.PhoneOrderStatus{
		{Phone: "0901", Status: domain.StatusCompleted},
	}, nil)

	w := env.do(http.MethodPost, "/api/v1/customers/history", `{"phones":["0901"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":{"0901":{"phone":"0901","total":1,"completed":1,"cancelled":0}}}`, w.Body.String())
}

func TestDownload(t *testing.T) {
	env := newTestEnv()
	env.dl.On("Fetch", mock.Anything, "https://cdn.example.com/a.csv", "orders.csv").Return(&infra.File{
		Name:        "orders.csv",
		ContentType: "text/csv",
		Size:        8,
		Body:        io.NopCloser(strings.NewReader("a,b\n1,2\n")),
	}, nil)
	env.dl.On("Fetch", mock.Anything, "https://cdn.example.com/gone", "").Return(nil, infra.ErrDownloadFailed)
	env.dl.On("Fetch", mock.Anything, "http://10.0.0.5/admin", "").Return(nil, infra.ErrHostNotAllowed)

	w := env.do(http.MethodGet, "/api/v1/files/download?url=https://cdn.example.com/a.csv&filename=orders.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=orders.csv`, w.Header().Get("Content-Disposition"))

	gone := env.do(http.MethodGet, "/api/v1/files/download?url=https://cdn.example.com/gone", "")
	assert.Equal(t, http.StatusBadGateway, gone.Code)

	internal := env.do(http.MethodGet, "/api/v1/files/download?url=http://10.0.0.5/admin", "")
	assert.Equal(t, http.StatusBadRequest, internal.Code)

	missing := env.do(http.MethodGet, "/api/v1/files/download", "")
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}
