package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"order-admin/internal/domain"
	"order-admin/internal/infra"
	rabbit "order-admin/internal/infra/rabbitmq"
	"order-admin/internal/repository"
)

func CreateMockOrder(id string, status domain.OrderStatus, paymentMethod string, riskScore *int) *domain.Order {
	return &domain.Order{
		ID:            id,
		UserID:        TestUserID,
		OrderCode:     "ORD-" + id,
		CustomerName:  "Test Customer",
		CustomerPhone: "0901234567",
		PaymentMethod: paymentMethod,
		Status:        status,
		TotalAmount:   TestTotalAmount,
		RiskScore:     riskScore,
		CreatedAt:     TestNow.Add(-time.Hour),
	}
}

func Score(v int) *int { return &v }

const (
	TestUserID      = "user-1"
	TestOrderID     = "order-1"
	TestTotalAmount = int64(350000)
)

var TestNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(r repository.OrderRepository, d infra.DownloaderInterface, pub rabbit.PublisherInterface) (*OrderService, *fakeClock) {
	clock := &fakeClock{t: TestNow}
	s := NewOrderService(r, d, pub)
	s.SetLogger(zap.NewNop())
	s.now = clock.Now
	s.SetActionCooldown(500 * time.Millisecond)
	return s, clock
}
