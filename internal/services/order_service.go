package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"order-admin/internal/actions"
	"order-admin/internal/domain"
	"order-admin/internal/infra"
	"order-admin/internal/infra/cache"
	rabbit "order-admin/internal/infra/rabbitmq"
	"order-admin/internal/logger"
	"order-admin/internal/metrics"
	"order-admin/internal/repository"
	"order-admin/internal/timeline"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrMissingUser      = errors.New("missing user id")
	ErrUnknownAction    = errors.New("unknown action")
	ErrActionNotAllowed = errors.New("action not allowed for the current order state")
	ErrInvalidInput     = errors.New("invalid input")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type OrderService struct {
	repo       repository.OrderRepository
	downloader infra.DownloaderInterface
	publisher  rabbit.PublisherInterface
	cache      cache.OrderListCache
	gates      *actions.Gates
	log        *zap.Logger
	now        func() time.Time

	// publishes still running in the background
	pending sync.WaitGroup
}

func NewOrderService(r repository.OrderRepository, d infra.DownloaderInterface, pub rabbit.PublisherInterface) *OrderService {
	return &OrderService{
		repo:       r,
		downloader: d,
		publisher:  pub,
		cache:      cache.Nop{},
		gates:      actions.NewGates(actions.DefaultCooldown, nil),
		log:        logger.L(),
		now:        time.Now,
	}
}

func (s *OrderService) SetCache(c cache.OrderListCache) {
	s.cache = c
}

func (s *OrderService) SetLogger(l *zap.Logger) {
	s.log = l
}

// SetActionCooldown replaces the per-order gates. Call it before serving.
func (s *OrderService) SetActionCooldown(d time.Duration) {
	s.gates = actions.NewGates(d, s.now)
}

// Wait blocks until background publishes have finished.
func (s *OrderService) Wait() {
	s.pending.Wait()
}

type ListParams struct {
	Page     int
	PageSize int
	Filters  domain.OrderFilters
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

func (p ListParams) cacheKey() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("size", strconv.Itoa(p.PageSize))
	v.Set("q", strings.TrimSpace(p.Filters.SearchQuery))
	v.Set("status", strings.ToUpper(strings.TrimSpace(p.Filters.Status)))
	v.Set("risk", strings.ToLower(strings.TrimSpace(p.Filters.RiskScore)))
	v.Set("payment", strings.ToUpper(strings.TrimSpace(p.Filters.PaymentMethod)))
	return v.Encode()
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, p ListParams) (*domain.OrderPage, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	p.normalize()

	key := p.cacheKey()
	if page, ok := s.cache.Get(ctx, userID, key); ok {
		metrics.OrderListCacheHitsTotal.Inc()
		return page, nil
	}

	page, err := s.repo.FindByUser(ctx, userID, p.Page, p.PageSize, p.Filters)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, userID, key, page)
	return page, nil
}

func (s *OrderService) GetOrderById(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	o, err := s.repo.FindByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// load fetches the order and its events concurrently.
func (s *OrderService) load(ctx context.Context, userID, orderID string) (*domain.Order, []domain.OrderEvent, error) {
	if userID == "" {
		return nil, nil, ErrMissingUser
	}

	var (
		order  *domain.Order
		events []domain.OrderEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o, err := s.repo.FindByID(gctx, userID, orderID)
		order = o
		return err
	})
	g.Go(func() error {
		ev, err := s.repo.FindEvents(gctx, orderID)
		events = ev
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, ErrOrderNotFound
	}
	return order, events, nil
}

type OrderDetail struct {
	Order             domain.Order          `json:"order"`
	Flags             actions.Flags         `json:"flags"`
	Controls          []actions.Control     `json:"controls"`
	Timeline          []timeline.Entry      `json:"timeline"`
	Risk              domain.RiskAssessment `json:"risk"`
	PaymentDivergence string                `json:"payment_divergence,omitempty"`
}

func (s *OrderService) GetOrderDetail(ctx context.Context, userID, orderID string) (*OrderDetail, error) {
	order, events, err := s.load(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return s.detail(order, events), nil
}

func (s *OrderService) detail(order *domain.Order, events []domain.OrderEvent) *OrderDetail {
	panel := actions.NewPanel(*order, events, nil, actions.WithGate(s.gates.For(order.ID)))

	d := &OrderDetail{
		Order:             *order,
		Flags:             panel.Flags(),
		Controls:          panel.Controls(),
		Timeline:          timeline.Render(events),
		Risk:              domain.AssessRisk(order, events),
		PaymentDivergence: order.PaymentDivergence(),
	}
	if d.PaymentDivergence != "" {
		s.log.Warn("payment signals disagree",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.String("divergence", d.PaymentDivergence))
	}
	return d
}

func (s *OrderService) GetTimeline(ctx context.Context, userID, orderID string) ([]timeline.Entry, error) {
	_, events, err := s.load(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return timeline.Render(events), nil
}

type CustomerHistory struct {
	Phone     string `json:"phone"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
}

// CustomerHistory aggregates past orders per phone. Every non-blank phone
// asked for is present in the result, with zero counts when unknown.
func (s *OrderService) CustomerHistory(ctx context.Context, userID string, phones []string) (map[string]CustomerHistory, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	out := make(map[string]CustomerHistory, len(phones))
	keys := make([]string, 0, len(phones))
	for _, p := range phones {
		p = strings.TrimSpace(p)
		if _, seen := out[p]; p == "" || seen {
			continue
		}
		out[p] = CustomerHistory{Phone: p}
		keys = append(keys, p)
	}
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.repo.FindPastOrdersByPhones(ctx, userID, keys)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		h := out[r.Phone]
		h.Phone = r.Phone
		h.Total++
		switch r.Status {
		case domain.StatusCompleted:
			h.Completed++
		case domain.StatusOrderRejected, domain.StatusCustomerCancelled:
			h.Cancelled++
		}
		out[r.Phone] = h
	}
	return out, nil
}

// Download fetches a remote file for the client to save.
func (s *OrderService) Download(ctx context.Context, rawURL, filename string) (*infra.File, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	f, err := s.downloader.Fetch(ctx, rawURL, filename)
	if errors.Is(err, infra.ErrHostNotAllowed) {
		s.log.Warn("download host rejected", zap.String("url", rawURL))
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		s.log.Warn("download failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	return f, nil
}

func (s *OrderService) publish(pattern string, data any) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.publisher.Publish(context.Background(), pattern, data); err != nil {
			s.log.Error("failed to publish event", zap.String("pattern", pattern), zap.Error(err))
		}
	}()
}
