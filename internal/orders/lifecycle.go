package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultAdminCancelReason = "cancelled by admin"

// ManagerDeps bundles the collaborators of a Manager. Store is required; the
// rest fall back to no-op or system defaults.
type ManagerDeps struct {
	Store        Store
	Numbers      *NumberGenerator
	Sequence     SequenceSource
	Events       EventPublisher
	Cache        StatusCache
	Clock        clock.Clock
	Logger       *zap.Logger
	IDGenerator  func() string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Manager is the order lifecycle manager: it creates orders against live
// stock and moves them through their statuses.
type Manager struct {
	store    Store
	ledger   *Ledger
	numbers  *NumberGenerator
	sequence SequenceSource
	events   EventPublisher
	cache    StatusCache
	clock    clock.Clock
	logger   *zap.Logger
	newID    func() string
	policy   RetryPolicy
}

func NewManager(deps ManagerDeps) *Manager {
	m := &Manager{
		store:    deps.Store,
		ledger:   NewLedger(deps.Store),
		numbers:  deps.Numbers,
		sequence: deps.Sequence,
		events:   deps.Events,
		cache:    deps.Cache,
		clock:    deps.Clock,
		logger:   deps.Logger,
		newID:    deps.IDGenerator,
		policy:   RetryPolicy{MaxAttempts: deps.MaxAttempts, Backoff: deps.RetryBackoff},
	}
	if m.clock == nil {
		m.clock = clock.NewSystem()
	}
	if m.numbers == nil {
		m.numbers = NewNumberGenerator("ORD", m.clock)
	}
	if m.events == nil {
		m.events = nopPublisher{}
	}
	if m.cache == nil {
		m.cache = nopCache{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

type CreateResult struct {
	Order Order
	// Created is false when an order with the same external id already existed.
	Created bool
}

// Create reserves stock for every line and persists the order in one
// transaction. Any failing line aborts the whole transaction.
func (m *Manager) Create(ctx context.Context, c Candidate) (CreateResult, error) {
	if err := c.Validate(); err != nil {
		return CreateResult{}, err
	}

	var res CreateResult
	err := m.retry(ctx, "create order", func(ctx context.Context) error {
		res = CreateResult{}
		number := m.numbers.Generate(m.nextSequence(ctx))

		return m.store.WithTx(ctx, func(txCtx context.Context) error {
			if c.ExternalID != "" {
				existing, err := m.store.GetOrderByExternalID(txCtx, c.ExternalID)
				if err == nil {
					res = CreateResult{Order: existing, Created: false}
					return nil
				}
				if !errors.Is(err, ErrOrderNotFound) {
					return err
				}
			}

			items := make([]LineItem, 0, len(c.Items))
			subtotal := decimal.Zero
			for i, it := range c.Items {
				li, err := m.ledger.Reserve(txCtx, it.ProductID, it.Qty)
				if err != nil {
					return atLine(err, i)
				}
				items = append(items, li)
				subtotal = subtotal.Add(li.Total())
			}

			now := m.clock.Now()
			o := Order{
				ID:              m.newID(),
				OrderNumber:     number,
				ExternalID:      c.ExternalID,
				UserID:          c.UserID,
				LineItems:       items,
				ShippingAddress: c.ShippingAddress,
				PaymentMethod:   c.PaymentMethod,
				PaymentStatus:   PaymentPending,
				Subtotal:        subtotal,
				Tax:             c.Tax,
				ShippingCost:    c.ShippingCost,
				Discount:        c.Discount,
				TotalAmount:     subtotal.Add(c.Tax).Add(c.ShippingCost).Sub(c.Discount),
				Status:          StatusPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := m.store.InsertOrder(txCtx, o); err != nil {
				if errors.Is(err, ErrDuplicate) {
					// Order number clash or a concurrent request with the same
					// external id; a fresh attempt resolves both.
					return &PersistenceError{Op: "insert order", Retryable: true, Err: err}
				}
				return err
			}
			res = CreateResult{Order: o, Created: true}
			return nil
		})
	})
	if err != nil {
		m.logger.Info("order create failed", zap.String("user_id", c.UserID), zap.Error(err))
		return CreateResult{}, err
	}

	if res.Created {
		m.logger.Info("order created",
			zap.String("order_id", res.Order.ID),
			zap.String("order_number", res.Order.OrderNumber),
			zap.String("total", res.Order.TotalAmount.String()))
		m.afterCommit(ctx, res.Order, Event{
			Type:       EventOrderCreated,
			OrderID:    res.Order.ID,
			OccurredAt: res.Order.CreatedAt,
			Payload: OrderCreatedPayload{
				StatusPayload: statusOf(res.Order),
				UserID:        res.Order.UserID,
				Items:         res.Order.LineItems,
				TotalAmount:   res.Order.TotalAmount,
			},
		})
	}
	return res, nil
}

// Cancel restores the reserved stock and marks the order cancelled. The
// status guard runs on the locked row inside the same transaction as the
// restore, so two concurrent cancels restore stock once.
func (m *Manager) Cancel(ctx context.Context, orderID, reason string) (Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Order{}, &ValidationError{Field: "reason", Reason: "is required"}
	}

	var (
		out  Order
		prev Status
	)
	err := m.retry(ctx, "cancel order", func(ctx context.Context) error {
		return m.store.WithTx(ctx, func(txCtx context.Context) error {
			o, err := m.store.GetOrderForUpdate(txCtx, orderID)
			if err != nil {
				return err
			}
			prev = o.Status
			out, err = m.cancelLocked(txCtx, o, reason)
			return err
		})
	})
	if err != nil {
		m.logger.Info("order cancel failed", zap.String("order_id", orderID), zap.Error(err))
		return Order{}, err
	}

	m.logger.Info("order cancelled", zap.String("order_id", out.ID), zap.String("previous_status", string(prev)))
	m.afterCommit(ctx, out, cancelledEvent(out, prev))
	return out, nil
}

func (m *Manager) cancelLocked(txCtx context.Context, o Order, reason string) (Order, error) {
	if !o.Status.Cancellable() {
		return Order{}, &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: StatusCancelled}
	}
	for _, li := range o.LineItems {
		if err := m.ledger.Restore(txCtx, li.ProductID, li.Quantity); err != nil {
			return Order{}, err
		}
	}
	now := m.clock.Now()
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	if err := m.store.UpdateOrder(txCtx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// UpdateStatus is the admin transition. Any status may be set except that a
// cancelled order is final, and cancelled itself goes through the cancel path
// so stock is restored.
func (m *Manager) UpdateStatus(ctx context.Context, orderID string, next Status, extra StatusExtra) (Order, error) {
	if !next.Valid() {
		return Order{}, &ValidationError{Field: "status", Reason: "unknown status " + string(next)}
	}
	if extra.PaymentStatus != "" {
		if _, err := ParsePaymentStatus(string(extra.PaymentStatus)); err != nil {
			return Order{}, &ValidationError{Field: "payment_status", Reason: err.Error()}
		}
	}

	var (
		out  Order
		prev Status
	)
	err := m.retry(ctx, "update order status", func(ctx context.Context) error {
		return m.store.WithTx(ctx, func(txCtx context.Context) error {
			o, err := m.store.GetOrderForUpdate(txCtx, orderID)
			if err != nil {
				return err
			}
			prev = o.Status
			if o.Status.Terminal() {
				return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: next}
			}
			if extra.TrackingNumber != "" {
				o.TrackingNumber = extra.TrackingNumber
			}
			if extra.AdminNote != "" {
				o.AdminNote = extra.AdminNote
			}

			if next == StatusCancelled {
				reason := extra.AdminNote
				if reason == "" {
					reason = defaultAdminCancelReason
				}
				out, err = m.cancelLocked(txCtx, o, reason)
				return err
			}

			now := m.clock.Now()
			o.Status = next
			if next == StatusDelivered {
				o.DeliveredAt = &now
			}
			if extra.PaymentStatus != "" {
				o.PaymentStatus = extra.PaymentStatus
				if extra.PaymentStatus == PaymentPaid {
					o.PaidAt = &now
					if o.Status == StatusPending {
						o.Status = StatusConfirmed
					}
				}
			}
			o.UpdatedAt = now
			if err := m.store.UpdateOrder(txCtx, o); err != nil {
				return err
			}
			out = o
			return nil
		})
	})
	if err != nil {
		m.logger.Info("order status update failed", zap.String("order_id", orderID), zap.String("status", string(next)), zap.Error(err))
		return Order{}, err
	}

	m.logger.Info("order status updated",
		zap.String("order_id", out.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(out.Status)))

	ev := Event{
		Type:       EventOrderStatusChanged,
		OrderID:    out.ID,
		OccurredAt: out.UpdatedAt,
		Payload: OrderStatusChangedPayload{
			StatusPayload:  statusOf(out),
			PreviousStatus: prev,
			PaymentStatus:  out.PaymentStatus,
			TrackingNumber: out.TrackingNumber,
		},
	}
	if out.Status == StatusCancelled {
		ev = cancelledEvent(out, prev)
	}
	m.afterCommit(ctx, out, ev)
	return out, nil
}

func (m *Manager) Get(ctx context.Context, orderID string) (Order, error) {
	o, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, asPersistence("get order", err)
	}
	return o, nil
}

func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	out, err := m.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, asPersistence("list orders", err)
	}
	return out, nil
}

// Status answers from the status cache and falls back to the store.
func (m *Manager) Status(ctx context.Context, orderID string) (StatusPayload, error) {
	if p, ok, err := m.cache.GetStatus(ctx, orderID); err == nil && ok {
		return p, nil
	} else if err != nil {
		m.logger.Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
	}
	o, err := m.Get(ctx, orderID)
	if err != nil {
		return StatusPayload{}, err
	}
	p := statusOf(o)
	if err := m.cache.SetStatus(ctx, p); err != nil {
		m.logger.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return p, nil
}

func (m *Manager) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return m.policy.run(ctx, m.logger, op, fn)
}

func (m *Manager) nextSequence(ctx context.Context) uint64 {
	if m.sequence == nil {
		return 0
	}
	seq, err := m.sequence.Next(ctx)
	if err != nil {
		m.logger.Warn("order sequence unavailable", zap.Error(err))
		return 0
	}
	return seq
}

// afterCommit never fails the operation: the order is already durable.
func (m *Manager) afterCommit(ctx context.Context, o Order, ev Event) {
	if err := m.cache.SetStatus(ctx, statusOf(o)); err != nil {
		m.logger.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.Error("publish order event failed",
			zap.String("order_id", o.ID), zap.String("event_type", ev.Type), zap.Error(err))
	}
}

func cancelledEvent(o Order, prev Status) Event {
	restored := make([]ItemInput, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		restored = append(restored, ItemInput{ProductID: li.ProductID, Qty: li.Quantity})
	}
	return Event{
		Type:       EventOrderCancelled,
		OrderID:    o.ID,
		OccurredAt: o.UpdatedAt,
		Payload: OrderCancelledPayload{
			StatusPayload:  statusOf(o),
			PreviousStatus: prev,
			Reason:         o.CancelReason,
			Restored:       restored,
		},
	}
}

// atLine stamps the failing line index onto ledger errors.
func atLine(err error, line int) error {
	var pnf *ProductNotFoundError
	if errors.As(err, &pnf) {
		e := *pnf
		e.Line = line
		return &e
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		e := *ise
		e.Line = line
		return &e
	}
	return err
}
