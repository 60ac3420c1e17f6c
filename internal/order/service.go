package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodorder-be/internal/customization"
	"foodorder-be/internal/events"
	"foodorder-be/internal/logger"
	"foodorder-be/internal/metrics"
	"foodorder-be/internal/store"
	"foodorder-be/internal/user"

	"go.uber.org/zap"
)

type Service interface {
	CreateOrder(ctx context.Context, userID, storeID uint, req Request) (uint, error)
	GetOrderWithDetails(ctx context.Context, orderID uint) (*WithDetails, error)
	CheckedGetOrderWithDetails(ctx context.Context, actorID, orderID uint) (*WithDetails, error)
	UpdateOrderState(ctx context.Context, actorID, orderID uint, next State) error
	GetOrdersByUser(ctx context.Context, userID uint) ([]Order, error)
	GetOrdersByStore(ctx context.Context, storeID uint) ([]Order, error)
	GetCompletedOrdersByStoreAndTime(ctx context.Context, storeID uint, begin, end time.Time) ([]Order, error)
	MealSalesCount(ctx context.Context, mealIDs []uint) ([]MealSales, error)
}

// StoreOwnerLookup answers who manages a store.
type StoreOwnerLookup interface {
	OwnerID(ctx context.Context, storeID uint) (uint, error)
}

// PrivilegeChecker answers whether a user holds a privilege.
type PrivilegeChecker interface {
	HasPrivilege(ctx context.Context, userID uint, privilege user.Privilege) (bool, error)
}

// Notifier receives order lifecycle events once they are committed.
type Notifier interface {
	Emit(ctx context.Context, ev events.OrderEvent) error
}

type service struct {
	repo       Repository
	stores     StoreOwnerLookup
	privileges PrivilegeChecker
	notifier   Notifier
	metrics    *metrics.Registry
}

func NewService(
	repo Repository,
	stores StoreOwnerLookup,
	privileges PrivilegeChecker,
	notifier Notifier,
	reg *metrics.Registry,
) Service {
	return &service{
		repo:       repo,
		stores:     stores,
		privileges: privileges,
		notifier:   notifier,
		metrics:    reg,
	}
}

func (s *service) CreateOrder(ctx context.Context, userID, storeID uint, req Request) (uint, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Uint("user_id", userID),
		zap.Uint("store_id", storeID),
		zap.Int("item_count", len(req.Items)),
	)
	log.Info("create order started")
	start := time.Now()

	if err := validateRequest(req); err != nil {
		s.reject(log, err)
		return 0, err
	}

	o := &Order{
		UserID:         userID,
		StoreID:        storeID,
		Notes:          req.Notes,
		PaymentType:    req.PaymentType,
		DeliveryMethod: req.DeliveryMethod,
		State:          StatePending,
	}

	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		ids := distinctMealIDs(req.Items)
		meals, err := tx.FindOrderableMeals(ctx, storeID, ids)
		if err != nil {
			return err
		}
		if len(meals) != len(ids) {
			return fmt.Errorf("%w: found %d of %d meals", ErrInvalidMealReference, len(meals), len(ids))
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		details := make([]Detail, 0, len(req.Items))
		for i, item := range req.Items {
			meal := meals[item.MealID]
			if err := customization.ValidateSchema(meal.Customizations); err != nil {
				return fmt.Errorf("item %d (meal %d): %w", i, item.MealID, err)
			}
			resolved, err := customization.Resolve(meal.Customizations, item.CustomizationStatuses)
			if err != nil {
				return fmt.Errorf("item %d (meal %d): %w", i, item.MealID, err)
			}
			details = append(details, Detail{
				OrderID:                o.ID,
				MealID:                 item.MealID,
				Quantity:               item.Quantity,
				Notes:                  item.Notes,
				Customizations:         resolved,
				CalculatedPricePerItem: SnapshotPrice(meal.Price, resolved),
			})
		}

		if err := tx.InsertDetails(ctx, details); err != nil {
			return err
		}

		total := TotalPrice(details)
		if err := tx.UpdateTotalPrice(ctx, o.ID, total); err != nil {
			return err
		}
		o.CalculatedTotalPrice = total
		return nil
	})
	if err != nil {
		s.reject(log, err)
		return 0, err
	}

	s.metrics.OrdersCreated.Inc()
	s.metrics.CreateDuration.Observe(time.Since(start).Seconds())

	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.String("total_price", o.CalculatedTotalPrice.String()),
	)

	s.emit(ctx, log, events.OrderEvent{
		EventType:  events.EventOrderCreated,
		OrderID:    o.ID,
		UserID:     o.UserID,
		StoreID:    o.StoreID,
		TotalPrice: o.CalculatedTotalPrice.String(),
		ItemCount:  len(req.Items),
	})

	return o.ID, nil
}

func validateRequest(req Request) error {
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidQuantity, i, item.Quantity)
		}
	}
	if !req.PaymentType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentType, req.PaymentType)
	}
	if !req.DeliveryMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDeliveryMethod, req.DeliveryMethod)
	}
	return nil
}

func distinctMealIDs(items []RequestItem) []uint {
	seen := make(map[uint]struct{}, len(items))
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.MealID]; ok {
			continue
		}
		seen[item.MealID] = struct{}{}
		ids = append(ids, item.MealID)
	}
	return ids
}

func (s *service) reject(log *zap.Logger, err error) {
	s.metrics.OrdersRejected.WithLabelValues(rejectionReason(err)).Inc()
	if IsValidationError(err) {
		log.Warn("order rejected", zap.Error(err))
		return
	}
	log.Error("failed to create order", zap.Error(err))
}

func (s *service) emit(ctx context.Context, log *zap.Logger, ev events.OrderEvent) {
	if s.notifier == nil {
		return
	}
	// The order is already committed, so a caller hanging up must not
	// cancel the event.
	if err := s.notifier.Emit(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("failed to publish order event",
			zap.String("event_type", ev.EventType),
			zap.Error(err),
		)
	}
}

func (s *service) GetOrderWithDetails(ctx context.Context, orderID uint) (*WithDetails, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	details, err := s.repo.GetOrderDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &WithDetails{Order: *o, Details: details}, nil
}

// CheckedGetOrderWithDetails reports ErrOrderNotFound both for missing
// orders and for actors that may not see the order.
func (s *service) CheckedGetOrderWithDetails(ctx context.Context, actorID, orderID uint) (*WithDetails, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CheckedGetOrderWithDetails"),
		zap.Uint("actor_id", actorID),
		zap.Uint("order_id", orderID),
	)

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	owner, err := s.storeOwner(ctx, o.StoreID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actorID, o, owner) {
		log.Warn("order access denied")
		return nil, ErrOrderNotFound
	}

	details, err := s.repo.GetOrderDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &WithDetails{Order: *o, Details: details}, nil
}

// storeOwner returns zero for a store that no longer exists.
func (s *service) storeOwner(ctx context.Context, storeID uint) (uint, error) {
	owner, err := s.stores.OwnerID(ctx, storeID)
	if errors.Is(err, store.ErrStoreNotFound) {
		return 0, nil
	}
	return owner, err
}

func (s *service) UpdateOrderState(ctx context.Context, actorID, orderID uint, next State) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateOrderState"),
		zap.Uint("actor_id", actorID),
		zap.Uint("order_id", orderID),
		zap.String("to_state", string(next)),
	)

	if !next.Valid() {
		log.Warn("unknown target state")
		return fmt.Errorf("%w: %q", ErrInvalidState, next)
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	owner, err := s.storeOwner(ctx, o.StoreID)
	if err != nil {
		return err
	}
	if !CanAccess(actorID, o, owner) {
		log.Warn("order access denied")
		return ErrOrderNotFound
	}

	roles, err := s.actingRoles(ctx, actorID, o, owner)
	if err != nil {
		log.Error("failed to resolve roles", zap.Error(err))
		return err
	}

	from := o.State
	if err := CheckTransition(from, next, roles...); err != nil {
		log.Warn("transition rejected",
			zap.String("from_state", string(from)),
			zap.Error(err),
		)
		return err
	}

	if err := s.repo.UpdateStateIfCurrent(ctx, orderID, from, next); err != nil {
		if errors.Is(err, ErrStateConflict) {
			log.Warn("order state changed before update", zap.String("from_state", string(from)))
		} else {
			log.Error("failed to update order state", zap.Error(err))
		}
		return err
	}

	s.metrics.StateTransitions.WithLabelValues(string(from), string(next)).Inc()
	log.Info("order state updated", zap.String("from_state", string(from)))

	s.emit(ctx, log, events.OrderEvent{
		EventType: events.EventOrderStateChanged,
		OrderID:   o.ID,
		UserID:    o.UserID,
		StoreID:   o.StoreID,
		FromState: string(from),
		ToState:   string(next),
		ActorID:   actorID,
	})
	return nil
}

// actingRoles lists the roles the actor may use on o, store manager first.
// A role applies only when the actor both stands in that relation to the
// order and holds the matching privilege.
func (s *service) actingRoles(ctx context.Context, actorID uint, o *Order, owner uint) ([]Role, error) {
	var roles []Role

	if owner != 0 && owner == actorID {
		ok, err := s.privileges.HasPrivilege(ctx, actorID, user.PrivilegeStoreManager)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, RoleStoreManager)
		}
	}

	if o.UserID == actorID {
		ok, err := s.privileges.HasPrivilege(ctx, actorID, user.PrivilegeConsumer)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, RoleConsumer)
		}
	}

	return roles, nil
}

func (s *service) GetOrdersByUser(ctx context.Context, userID uint) ([]Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

func (s *service) GetOrdersByStore(ctx context.Context, storeID uint) ([]Order, error) {
	return s.repo.ListOrdersByStore(ctx, storeID)
}

// GetCompletedOrdersByStoreAndTime lists completed orders created in
// [begin, end). Bounds are sent as UTC instants whatever offset they carry.
func (s *service) GetCompletedOrdersByStoreAndTime(ctx context.Context, storeID uint, begin, end time.Time) ([]Order, error) {
	return s.repo.ListOrdersByStoreStateAndTime(ctx, storeID, StateCompleted, begin.UTC(), end.UTC())
}

func (s *service) MealSalesCount(ctx context.Context, mealIDs []uint) ([]MealSales, error) {
	if len(mealIDs) == 0 {
		return []MealSales{}, nil
	}
	return s.repo.MealSalesCount(ctx, mealIDs, StateCompleted)
}
