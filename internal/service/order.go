package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pttech/commerce/internal/domain"
	"github.com/pttech/commerce/internal/payment"
)

// PickupThreshold is how long an order may sit in awaiting-confirmation
// before the maintenance sweep moves it to ready-for-pickup.
const PickupThreshold = 30 * time.Minute

// OrderService is the order lifecycle engine. It owns every mutation of an
// order and is the only caller of the catalog's stock operations and the
// discount ledger's usage operation.
type OrderService interface {
	// CreateOrder computes totals, applies an optional discount code,
	// reserves stock per line item and persists the order.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error)

	// UpdateOrder applies changed fields to a live order, adjusting stock
	// by per-variant quantity deltas and recomputing all totals.
	UpdateOrder(ctx context.Context, id primitive.ObjectID, params UpdateOrderParams) (*domain.Order, error)

	// CancelOrder cancels an order still awaiting confirmation, restoring
	// the stock it reserved. Discount usage is not refunded.
	CancelOrder(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)

	// DeleteOrder soft-deletes an order that is not already cancelled,
	// restoring reserved stock.
	DeleteOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)

	// RequestReturn, CompleteReturn and RejectReturn drive the return flow.
	RequestReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)
	CompleteReturn(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	RejectReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error)

	// ApplyPaymentCallback reconciles an asynchronous gateway callback with
	// the order identified by the transaction reference. Replays are no-ops.
	ApplyPaymentCallback(ctx context.Context, txnRef, responseCode, txnStatus string) (*domain.Order, error)

	// ReleaseStalled moves every order stuck in awaiting-confirmation past
	// the pickup threshold to ready-for-pickup. Safe to run concurrently
	// with order mutations and idempotent across runs.
	ReleaseStalled(ctx context.Context) (int64, error)

	// Read side.
	GetOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	GetOrderByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
	ListOrdersByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Order, error)
	TopOrdersByTotalItems(ctx context.Context) ([]domain.Order, error)
	TopOrdersByFinalPrice(ctx context.Context) ([]domain.Order, error)
}

// CreateOrderParams carries everything needed to place an order. Item
// snapshot fields (name, image, color, ...) are captured as provided and
// never re-joined against the live catalog.
type CreateOrderParams struct {
	UserID          primitive.ObjectID
	Items           []domain.OrderItem
	ShippingAddress domain.ShippingAddress
	PhoneNumber     string
	PaymentMethod   string
	ShippingMethod  string
	ShippingPrice   float64
	DiscountCode    string
	OrderNotes      string
}

// UpdateOrderParams carries the mutable fields of an order. Nil pointers
// leave the existing value untouched; Items, when present, replaces the
// whole line-item list.
type UpdateOrderParams struct {
	Items           []domain.OrderItem
	ShippingAddress *domain.ShippingAddress
	PhoneNumber     *string
	OrderStatus     *domain.OrderStatus
	PaymentMethod   *string
	ShippingMethod  *string
	ShippingPrice   *float64
	DiscountCode    *string
	OrderNotes      *string
}

type orderService struct {
	orders    domain.OrderRepository
	catalog   domain.CatalogStore
	discounts domain.DiscountLedger
	recon     domain.ReconciliationQueue
	notifier  domain.Notifier
	events    domain.EventPublisher
	logger    zerolog.Logger

	now        func() time.Time
	newOrderID func() string
}

// NewOrderService creates the order lifecycle engine.
func NewOrderService(
	orders domain.OrderRepository,
	catalog domain.CatalogStore,
	discounts domain.DiscountLedger,
	recon domain.ReconciliationQueue,
	notifier domain.Notifier,
	events domain.EventPublisher,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orders:     orders,
		catalog:    catalog,
		discounts:  discounts,
		recon:      recon,
		notifier:   notifier,
		events:     events,
		logger:     logger.With().Str("component", "order_service").Logger(),
		now:        time.Now,
		newOrderID: generateOrderID,
	}
}

// generateOrderID builds the external-facing order code, e.g. "ORD-9f8a3c21".
func generateOrderID() string {
	return "ORD-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func (s *orderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	if len(params.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	for _, item := range params.Items {
		if item.Quantity <= 0 {
			return nil, domain.Invalid(op, "item quantity must be positive")
		}
		if item.DiscountPrice < 0 || item.OriginalPrice < 0 {
			return nil, domain.Invalid(op, "item price must not be negative")
		}
	}

	items := make([]domain.OrderItem, len(params.Items))
	copy(items, params.Items)
	for i := range items {
		items[i].TotalPrice = items[i].DiscountPrice * float64(items[i].Quantity)
	}

	totalPrice, totalItems := ComputeTotals(items)

	discountAmount, err := s.applyDiscount(ctx, params.DiscountCode, params.UserID, totalPrice)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		OrderID:         s.newOrderID(),
		UserID:          params.UserID,
		Items:           items,
		TotalItems:      totalItems,
		TotalPrice:      totalPrice,
		ShippingPrice:   params.ShippingPrice,
		DiscountCode:    params.DiscountCode,
		DiscountAmount:  discountAmount,
		FinalPrice:      FinalPrice(totalPrice, discountAmount, params.ShippingPrice),
		PhoneNumber:     params.PhoneNumber,
		ShippingAddress: params.ShippingAddress,
		PaymentMethod:   params.PaymentMethod,
		PaymentStatus:   domain.PaymentUnpaid,
		OrderStatus:     domain.OrderAwaitingConfirmation,
		ShippingMethod:  params.ShippingMethod,
		OrderNotes:      params.OrderNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Reserve stock before the order document exists, so an insufficient
	// variant fails the whole creation instead of leaving a paid order
	// nobody can fulfil. Discount usage recorded above is intentionally
	// not rolled back.
	if err := s.reserveStock(ctx, order); err != nil {
		return nil, err
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.releaseStock(ctx, order)
		return nil, domain.Internal(err, op, "failed to persist order")
	}

	s.notify(ctx, op, func() error { return s.notifier.OrderPlaced(ctx, order) })
	s.publish(ctx, domain.EventOrderCreated, order)

	return order, nil
}

// applyDiscount resolves and, when the amount is non-zero, consumes a usage
// record for the code. An unknown or expired code yields zero, silently. The
// authoritative at-most-once decision lives in the ledger's ApplyUsage; the
// UsedBy check here only short-circuits the common case.
func (s *orderService) applyDiscount(ctx context.Context, code string, userID primitive.ObjectID, totalPrice float64) (float64, error) {
	if code == "" {
		return 0, nil
	}

	discount, err := s.discounts.FindActiveCode(ctx, code, s.now())
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up discount code: %w", err)
	}

	if discount.UsedBy(userID) {
		return 0, domain.ErrDiscountAlreadyUsed
	}

	amount := DiscountAmount(discount, totalPrice)
	if amount == 0 {
		return 0, nil
	}

	if err := s.discounts.ApplyUsage(ctx, code, userID); err != nil {
		if errors.Is(err, domain.ErrDiscountAlreadyUsed) {
			return 0, domain.ErrDiscountAlreadyUsed
		}
		return 0, fmt.Errorf("failed to record discount usage: %w", err)
	}

	return amount, nil
}

// recomputeDiscount re-derives the discount amount for an order whose code
// is already recorded against the user. Pure: no usage state is touched, so
// updating an order can never double-consume the code.
func (s *orderService) recomputeDiscount(ctx context.Context, code string, totalPrice float64) float64 {
	if code == "" {
		return 0
	}

	discount, err := s.discounts.FindActiveCode(ctx, code, s.now())
	if err != nil {
		return 0
	}
	return DiscountAmount(discount, totalPrice)
}

// reserveStock decrements each line item's variant stock and bumps the
// product's sold counter. An insufficient variant aborts the reservation and
// compensates the decrements already applied. A missing product or variant
// does not abort: the discrepancy is queued for reconciliation, matching the
// best-effort contract of the original flow but making the gap visible.
func (s *orderService) reserveStock(ctx context.Context, order *domain.Order) error {
	for i, item := range order.Items {
		err := s.catalog.AdjustVariantStock(ctx, item.ProductID, item.VariantID, -item.Quantity)
		switch {
		case err == nil:
			if err := s.catalog.IncrementTotalSold(ctx, item.ProductID, item.Quantity); err != nil {
				s.logger.Warn().Err(err).
					Str("order_id", order.OrderID).
					Str("product_id", item.ProductID.Hex()).
					Msg("failed to increment totalSold")
			}
		case errors.Is(err, domain.ErrInsufficientStock):
			s.compensateStock(ctx, order.Items[:i])
			return domain.ErrInsufficientStock
		default:
			// Missing product, missing variant, or a store error: the
			// order still goes through, the gap goes to reconciliation.
			s.recordDiscrepancy(ctx, order.OrderID, item, -item.Quantity, err.Error())
		}
	}
	return nil
}

// releaseStock restores each line item's variant stock and rolls the sold
// counter back. Used by cancel, delete, and creation compensation.
func (s *orderService) releaseStock(ctx context.Context, order *domain.Order) {
	for _, item := range order.Items {
		if err := s.catalog.AdjustVariantStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			s.recordDiscrepancy(ctx, order.OrderID, item, item.Quantity, err.Error())
			continue
		}
		if err := s.catalog.IncrementTotalSold(ctx, item.ProductID, -item.Quantity); err != nil {
			s.logger.Warn().Err(err).
				Str("order_id", order.OrderID).
				Str("product_id", item.ProductID.Hex()).
				Msg("failed to decrement totalSold")
		}
	}
}

// compensateStock reverses reservations already applied during a failed
// multi-item reservation.
func (s *orderService) compensateStock(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if err := s.catalog.AdjustVariantStock(ctx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			s.recordDiscrepancy(ctx, "", item, item.Quantity, err.Error())
			continue
		}
		if err := s.catalog.IncrementTotalSold(ctx, item.ProductID, -item.Quantity); err != nil {
			s.logger.Warn().Err(err).
				Str("product_id", item.ProductID.Hex()).
				Msg("failed to roll back totalSold")
		}
	}
}

func (s *orderService) recordDiscrepancy(ctx context.Context, orderID string, item domain.OrderItem, delta int, reason string) {
	s.logger.Warn().
		Str("order_id", orderID).
		Str("product_id", item.ProductID.Hex()).
		Str("variant_id", item.VariantID.Hex()).
		Int("delta", delta).
		Str("reason", reason).
		Msg("stock adjustment not applied, queued for reconciliation")

	err := s.recon.Record(ctx, domain.StockDiscrepancy{
		OrderID:   orderID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to record stock discrepancy")
	}
}

func (s *orderService) UpdateOrder(ctx context.Context, id primitive.ObjectID, params UpdateOrderParams) (*domain.Order, error) {
	const op = "order.update"

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus == domain.OrderCancelled {
		return nil, domain.ErrOrderCancelled
	}

	if params.OrderStatus != nil {
		switch *params.OrderStatus {
		case domain.OrderDelivered, domain.OrderReceived:
			return nil, domain.ErrTerminalStatus
		}
		order.OrderStatus = *params.OrderStatus
	}

	if params.Items != nil {
		for _, item := range params.Items {
			if item.Quantity <= 0 {
				return nil, domain.Invalid(op, "item quantity must be positive")
			}
		}
		if err := s.adjustStockForUpdate(ctx, order, params.Items); err != nil {
			return nil, err
		}
		items := make([]domain.OrderItem, len(params.Items))
		copy(items, params.Items)
		for i := range items {
			items[i].TotalPrice = items[i].DiscountPrice * float64(items[i].Quantity)
		}
		order.Items = items
	}

	if params.ShippingAddress != nil {
		order.ShippingAddress = *params.ShippingAddress
	}
	if params.PhoneNumber != nil {
		order.PhoneNumber = *params.PhoneNumber
	}
	if params.PaymentMethod != nil {
		order.PaymentMethod = *params.PaymentMethod
	}
	if params.ShippingMethod != nil {
		order.ShippingMethod = *params.ShippingMethod
	}
	if params.ShippingPrice != nil {
		order.ShippingPrice = *params.ShippingPrice
	}
	if params.OrderNotes != nil {
		order.OrderNotes = *params.OrderNotes
	}

	totalPrice, totalItems := ComputeTotals(order.Items)
	order.TotalPrice = totalPrice
	order.TotalItems = totalItems

	// A code already attached to the order is recomputed purely so the
	// update never consumes a second usage record. Only a newly introduced
	// code goes through the side-effecting apply path.
	if params.DiscountCode != nil && *params.DiscountCode != order.DiscountCode {
		amount, err := s.applyDiscount(ctx, *params.DiscountCode, order.UserID, totalPrice)
		if err != nil {
			return nil, err
		}
		order.DiscountCode = *params.DiscountCode
		order.DiscountAmount = amount
	} else {
		order.DiscountAmount = s.recomputeDiscount(ctx, order.DiscountCode, totalPrice)
	}

	order.FinalPrice = FinalPrice(order.TotalPrice, order.DiscountAmount, order.ShippingPrice)
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist order update")
	}

	return order, nil
}

// adjustStockForUpdate reconciles stock with the quantity deltas between the
// order's current items and the incoming list, matched by variant id. A new
// variant reserves its full quantity; a dropped variant releases it.
func (s *orderService) adjustStockForUpdate(ctx context.Context, order *domain.Order, updated []domain.OrderItem) error {
	type adjustment struct {
		item  domain.OrderItem
		delta int // positive means more units reserved
	}

	oldByVariant := make(map[primitive.ObjectID]domain.OrderItem, len(order.Items))
	for _, item := range order.Items {
		oldByVariant[item.VariantID] = item
	}

	var adjustments []adjustment
	seen := make(map[primitive.ObjectID]struct{}, len(updated))
	for _, item := range updated {
		seen[item.VariantID] = struct{}{}
		oldQty := 0
		if old, ok := oldByVariant[item.VariantID]; ok {
			oldQty = old.Quantity
		}
		if d := item.Quantity - oldQty; d != 0 {
			adjustments = append(adjustments, adjustment{item: item, delta: d})
		}
	}
	for variantID, old := range oldByVariant {
		if _, ok := seen[variantID]; !ok {
			adjustments = append(adjustments, adjustment{item: old, delta: -old.Quantity})
		}
	}

	var applied []adjustment
	for _, adj := range adjustments {
		err := s.catalog.AdjustVariantStock(ctx, adj.item.ProductID, adj.item.VariantID, -adj.delta)
		switch {
		case err == nil:
			if err := s.catalog.IncrementTotalSold(ctx, adj.item.ProductID, adj.delta); err != nil {
				s.logger.Warn().Err(err).
					Str("order_id", order.OrderID).
					Str("product_id", adj.item.ProductID.Hex()).
					Msg("failed to adjust totalSold")
			}
			applied = append(applied, adj)
		case errors.Is(err, domain.ErrInsufficientStock):
			for _, a := range applied {
				if err := s.catalog.AdjustVariantStock(ctx, a.item.ProductID, a.item.VariantID, a.delta); err != nil {
					s.recordDiscrepancy(ctx, order.OrderID, a.item, a.delta, err.Error())
				} else if err := s.catalog.IncrementTotalSold(ctx, a.item.ProductID, -a.delta); err != nil {
					s.logger.Warn().Err(err).
						Str("order_id", order.OrderID).
						Str("product_id", a.item.ProductID.Hex()).
						Msg("failed to roll back totalSold")
				}
			}
			return domain.ErrInsufficientStock
		default:
			s.recordDiscrepancy(ctx, order.OrderID, adj.item, -adj.delta, err.Error())
		}
	}
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	const op = "order.cancel"

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus != domain.OrderAwaitingConfirmation {
		return nil, domain.ErrOrderNotCancellable
	}

	s.releaseStock(ctx, order)

	order.OrderStatus = domain.OrderCancelled
	order.IsDeleted = true
	order.CancellationReason = reason
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist cancellation")
	}

	s.publish(ctx, domain.EventOrderCancelled, order)

	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	const op = "order.delete"

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus == domain.OrderCancelled {
		return nil, domain.ErrOrderCancelled
	}

	s.releaseStock(ctx, order)

	order.IsDeleted = true
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist deletion")
	}

	return order, nil
}

func (s *orderService) RequestReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	const op = "order.request_return"

	if strings.TrimSpace(reason) == "" {
		return nil, domain.Invalid(op, "return reason is required")
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus == domain.OrderCancelled {
		return nil, domain.ErrOrderCancelled
	}

	order.OrderStatus = domain.OrderReturnRequested
	order.ReturnReason = reason
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist return request")
	}

	return order, nil
}

func (s *orderService) CompleteReturn(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	const op = "order.complete_return"

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus != domain.OrderReturnRequested {
		return nil, domain.ErrNoReturnRequested
	}

	order.OrderStatus = domain.OrderReturnCompleted
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist return completion")
	}

	s.notify(ctx, op, func() error { return s.notifier.ReturnCompleted(ctx, order) })
	s.publish(ctx, domain.EventOrderReturnCompleted, order)

	return order, nil
}

func (s *orderService) RejectReturn(ctx context.Context, id primitive.ObjectID, reason string) (*domain.Order, error) {
	const op = "order.reject_return"

	if strings.TrimSpace(reason) == "" {
		return nil, domain.Invalid(op, "rejection reason is required")
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.OrderStatus != domain.OrderReturnRequested {
		return nil, domain.ErrNoReturnRequested
	}

	order.OrderStatus = domain.OrderReturnRejected
	order.ReturnRejectionReason = reason
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to persist return rejection")
	}

	s.notify(ctx, op, func() error { return s.notifier.ReturnRejected(ctx, order) })

	return order, nil
}

func (s *orderService) ApplyPaymentCallback(ctx context.Context, txnRef, responseCode, txnStatus string) (*domain.Order, error) {
	status, err := payment.StatusForCallback(responseCode, txnStatus)
	if err != nil {
		return nil, err
	}

	// Last-writer-wins on paymentStatus only: callbacks carry the terminal
	// outcome per transaction, so a replay overwrites with the same value.
	if err := s.orders.SetPaymentStatus(ctx, txnRef, status); err != nil {
		return nil, err
	}

	order, err := s.orders.FindByOrderID(ctx, txnRef)
	if err != nil {
		return nil, err
	}

	if status == domain.PaymentPaid {
		s.publish(ctx, domain.EventOrderPaid, order)
	}

	return order, nil
}

func (s *orderService) ReleaseStalled(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-PickupThreshold)
	moved, err := s.orders.MarkStalledReadyForPickup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stalled orders: %w", err)
	}
	if moved > 0 {
		s.logger.Info().Int64("orders", moved).Msg("moved stalled orders to ready-for-pickup")
	}
	return moved, nil
}

func (s *orderService) GetOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *orderService) GetOrderByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.FindByOrderID(ctx, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, filter)
}

func (s *orderService) ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *orderService) ListOrdersByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Order, error) {
	return s.orders.ListByProduct(ctx, productID)
}

func (s *orderService) TopOrdersByTotalItems(ctx context.Context) ([]domain.Order, error) {
	return s.orders.TopByTotalItems(ctx, 10)
}

func (s *orderService) TopOrdersByFinalPrice(ctx context.Context) ([]domain.Order, error) {
	return s.orders.TopByFinalPrice(ctx, 10)
}

// notify runs a fire-and-forget notification; failures are logged, never
// propagated.
func (s *orderService) notify(_ context.Context, op string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn().Err(err).Str("op", op).Msg("notification failed")
	}
}

// publish broadcasts an order event; failures are logged, never propagated.
func (s *orderService) publish(ctx context.Context, subject string, order *domain.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, order); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}
