package actions

import (
	"context"
	"errors"
	"strings"

	"order-admin/internal/domain"
)

var (
	ErrUnavailable    = errors.New("action not available for this order")
	ErrReasonRequired = errors.New("a reason is required to reject an order")
)

// Handler performs one action. reason is only meaningful for Reject.
type Handler func(ctx context.Context, order domain.Order, reason string) error

type Control struct {
	Action   Action `json:"action"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Panel is the action area of a single order: the resolved controls, the
// handlers behind them and the gate that keeps one action in flight.
type Panel struct {
	order     domain.Order
	flags     Flags
	actions   []Action
	handlers  map[Action]Handler
	gate      *Gate
	onUpdated func(domain.Order)
}

type PanelOption func(*Panel)

// WithGate shares a gate with other panels for the same order.
func WithGate(g *Gate) PanelOption {
	return func(p *Panel) { p.gate = g }
}

// OnUpdated registers the signal fired after a handler succeeds.
func OnUpdated(fn func(domain.Order)) PanelOption {
	return func(p *Panel) { p.onUpdated = fn }
}

func NewPanel(order domain.Order, events []domain.OrderEvent, handlers map[Action]Handler, opts ...PanelOption) *Panel {
	flags := DeriveFlags(&order, events)
	p := &Panel{
		order:    order,
		flags:    flags,
		actions:  Resolve(&order, flags),
		handlers: handlers,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.gate == nil {
		p.gate = NewGate(DefaultCooldown, nil)
	}
	return p
}

func (p *Panel) Flags() Flags { return p.flags }

func (p *Panel) Actions() []Action {
	return append([]Action(nil), p.actions...)
}

// Controls lists the resolved actions. All of them are disabled while the
// gate is closed.
func (p *Panel) Controls() []Control {
	busy := p.gate.Busy()
	out := make([]Control, 0, len(p.actions))
	for _, a := range p.actions {
		out = append(out, Control{Action: a, Label: a.Label(), Disabled: busy})
	}
	return out
}

// Activate runs the handler behind a. The order passed to the handler is
// the one the panel was resolved from; a failing handler leaves the panel
// as it was apart from the cool-down.
func (p *Panel) Activate(ctx context.Context, a Action, reason string) error {
	if !Allowed(p.actions, a) {
		return ErrUnavailable
	}
	h, ok := p.handlers[a]
	if !ok {
		return ErrUnavailable
	}
	if a == Reject && strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	release, err := p.gate.Acquire()
	if err != nil {
		return err
	}
	if err := runReleased(release, func() error { return h(ctx, p.order, reason) }); err != nil {
		return err
	}

	if p.onUpdated != nil {
		p.onUpdated(p.order)
	}
	return nil
}

// runReleased calls fn and then release, even when fn panics.
func runReleased(release func(), fn func() error) error {
	defer release()
	return fn()
}
