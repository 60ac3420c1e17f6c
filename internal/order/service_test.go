package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"foodorder-be/internal/customization"
	"foodorder-be/internal/events"
	"foodorder-be/internal/logger"
	"foodorder-be/internal/metrics"
	"foodorder-be/internal/store"
	"foodorder-be/internal/user"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	consumerID = uint(1)
	managerID  = uint(9)
	strangerID = uint(77)
	storeID    = uint(5)
)

type serviceDeps struct {
	repo       *MockRepository
	stores     *MockStoreLookup
	privileges *MockPrivileges
	notifier   *MockNotifier
	metrics    *metrics.Registry
	svc        Service
}

func newServiceDeps() *serviceDeps {
	d := &serviceDeps{
		repo:       &MockRepository{Tx: &MockTx{}},
		stores:     &MockStoreLookup{},
		privileges: &MockPrivileges{},
		notifier:   &MockNotifier{},
		metrics:    metrics.NewRegistry(),
	}
	d.svc = NewService(d.repo, d.stores, d.privileges, d.notifier, d.metrics)
	return d
}

func beefNoodle() Meal {
	return Meal{
		ID:          1,
		StoreID:     storeID,
		Price:       decimal.NewFromInt(120),
		IsAvailable: true,
		Customizations: customization.Schema{
			SelectionGroups: []customization.Group{{
				Kind:  customization.KindRadio,
				Title: "noodle type",
				Items: []customization.Item{
					{Name: "thin", Price: decimal.Zero, Enabled: true},
					{Name: "thick", Price: decimal.NewFromInt(10), Enabled: true},
				},
			}},
		},
	}
}

func plainRice() Meal {
	return Meal{
		ID:          2,
		StoreID:     storeID,
		Price:       decimal.NewFromInt(35),
		IsAvailable: true,
	}
}

func validRequest(items ...RequestItem) Request {
	return Request{
		Notes:          "no onions",
		PaymentType:    PaymentCash,
		DeliveryMethod: DeliveryPickup,
		Items:          items,
	}
}

func decimalEq(want int64) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(want))
	})
}

func TestService_CreateOrder(t *testing.T) {
	t.Run("Success snapshots customized price", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil).Once()
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{1}).
			Return(map[uint]Meal{1: beefNoodle()}, nil).Once()
		tx.On("InsertOrder", mock.Anything, mock.MatchedBy(func(o *Order) bool {
			return o.State == StatePending && o.UserID == consumerID && o.StoreID == storeID
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 10
		}).Return(nil).Once()
		tx.On("InsertDetails", mock.Anything, mock.MatchedBy(func(ds []Detail) bool {
			return len(ds) == 1 &&
				ds[0].OrderID == 10 &&
				ds[0].Quantity == 2 &&
				ds[0].CalculatedPricePerItem.Equal(decimal.NewFromInt(130)) &&
				ds[0].Customizations.SelectionGroups[0].Items[1].Selected
		})).Return(nil).Once()
		tx.On("UpdateTotalPrice", mock.Anything, uint(10), decimalEq(260)).Return(nil).Once()
		d.notifier.On("Emit", mock.Anything, mock.MatchedBy(func(ev events.OrderEvent) bool {
			return ev.EventType == events.EventOrderCreated &&
				ev.OrderID == 10 &&
				ev.TotalPrice == "260" &&
				ev.ItemCount == 1
		})).Return(nil).Once()

		id, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 1, Quantity: 2, CustomizationStatuses: []bool{false, true}},
		))

		require.NoError(t, err)
		assert.Equal(t, uint(10), id)
		assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersCreated))
		d.repo.AssertExpectations(t)
		tx.AssertExpectations(t)
		d.notifier.AssertExpectations(t)
	})

	t.Run("Duplicate meal ids are looked up once", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{2, 1}).
			Return(map[uint]Meal{1: beefNoodle(), 2: plainRice()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 11
		}).Return(nil)
		tx.On("InsertDetails", mock.Anything, mock.MatchedBy(func(ds []Detail) bool {
			return len(ds) == 3 && ds[0].MealID == 2 && ds[1].MealID == 1 && ds[2].MealID == 2
		})).Return(nil)
		// 35*1 + 120*1 + 35*3
		tx.On("UpdateTotalPrice", mock.Anything, uint(11), decimalEq(260)).Return(nil)
		d.notifier.On("Emit", mock.Anything, mock.Anything).Return(nil)

		id, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1, CustomizationStatuses: []bool{}},
			RequestItem{MealID: 1, Quantity: 1, CustomizationStatuses: []bool{true, false}},
			RequestItem{MealID: 2, Quantity: 3},
		))

		require.NoError(t, err)
		assert.Equal(t, uint(11), id)
		tx.AssertExpectations(t)
	})

	t.Run("Empty order never opens a transaction", func(t *testing.T) {
		d := newServiceDeps()

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest())

		assert.ErrorIs(t, err, ErrEmptyOrder)
		assert.True(t, IsValidationError(err))
		d.repo.AssertNotCalled(t, "WithTx", mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersRejected.WithLabelValues("empty_order")))
		assert.Equal(t, 0.0, testutil.ToFloat64(d.metrics.OrdersCreated))
	})

	t.Run("Non-positive quantity", func(t *testing.T) {
		for _, q := range []int{0, -1} {
			d := newServiceDeps()

			_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
				RequestItem{MealID: 2, Quantity: 1},
				RequestItem{MealID: 1, Quantity: q},
			))

			assert.ErrorIs(t, err, ErrInvalidQuantity)
			d.repo.AssertNotCalled(t, "WithTx", mock.Anything)
		}
	})

	t.Run("Unknown payment type", func(t *testing.T) {
		d := newServiceDeps()
		req := validRequest(RequestItem{MealID: 2, Quantity: 1})
		req.PaymentType = "bitcoin"

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, req)

		assert.ErrorIs(t, err, ErrInvalidPaymentType)
		d.repo.AssertNotCalled(t, "WithTx", mock.Anything)
	})

	t.Run("Unknown delivery method", func(t *testing.T) {
		d := newServiceDeps()
		req := validRequest(RequestItem{MealID: 2, Quantity: 1})
		req.DeliveryMethod = "drone"

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, req)

		assert.ErrorIs(t, err, ErrInvalidDeliveryMethod)
	})

	t.Run("Meal from another store", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{2, 42}).
			Return(map[uint]Meal{2: plainRice()}, nil)

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1},
			RequestItem{MealID: 42, Quantity: 1},
		))

		assert.ErrorIs(t, err, ErrInvalidMealReference)
		tx.AssertNotCalled(t, "InsertOrder", mock.Anything, mock.Anything)
		d.notifier.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersRejected.WithLabelValues("invalid_meal_reference")))
	})

	t.Run("Radio group with two selections", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{1}).
			Return(map[uint]Meal{1: beefNoodle()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 1, Quantity: 1, CustomizationStatuses: []bool{true, true}},
		))

		assert.ErrorIs(t, err, customization.ErrRadioConstraintViolated)
		assert.True(t, IsValidationError(err))
		tx.AssertNotCalled(t, "InsertDetails", mock.Anything, mock.Anything)
		tx.AssertNotCalled(t, "UpdateTotalPrice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Selection length mismatch", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{1}).
			Return(map[uint]Meal{1: beefNoodle()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 1, Quantity: 1, CustomizationStatuses: []bool{true}},
		))

		assert.ErrorIs(t, err, customization.ErrSelectionLengthMismatch)
	})

	t.Run("Stored schema without enabled items", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		broken := beefNoodle()
		for i := range broken.Customizations.SelectionGroups[0].Items {
			broken.Customizations.SelectionGroups[0].Items[i].Enabled = false
		}

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{1}).
			Return(map[uint]Meal{1: broken}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 1, Quantity: 1, CustomizationStatuses: []bool{true, false}},
		))

		assert.ErrorIs(t, err, customization.ErrInvalidSchema)
		assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersRejected.WithLabelValues("invalid_schema")))
	})

	t.Run("Storage failure is logged as error", func(t *testing.T) {
		core, observed := observer.New(zapcore.InfoLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{2}).
			Return(map[uint]Meal{2: plainRice()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Return(nil)
		tx.On("InsertDetails", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1},
		))

		require.Error(t, err)
		assert.False(t, IsValidationError(err))
		assert.Equal(t, 1, observed.FilterMessage("failed to create order").FilterLevelExact(zapcore.ErrorLevel).Len())
		assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OrdersRejected.WithLabelValues("storage")))
	})

	t.Run("Validation failure is logged as warning", func(t *testing.T) {
		core, observed := observer.New(zapcore.InfoLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		d := newServiceDeps()
		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest())

		assert.ErrorIs(t, err, ErrEmptyOrder)
		assert.Equal(t, 1, observed.FilterMessage("order rejected").FilterLevelExact(zapcore.WarnLevel).Len())
		assert.Zero(t, observed.FilterLevelExact(zapcore.ErrorLevel).Len())
	})

	t.Run("Begin failure", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("WithTx", mock.Anything).Return(errors.New("begin transaction: connection refused"))

		_, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1},
		))

		assert.Error(t, err)
		d.repo.Tx.AssertNotCalled(t, "FindOrderableMeals", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Event publish failure does not fail the order", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx

		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{2}).
			Return(map[uint]Meal{2: plainRice()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 12
		}).Return(nil)
		tx.On("InsertDetails", mock.Anything, mock.Anything).Return(nil)
		tx.On("UpdateTotalPrice", mock.Anything, uint(12), decimalEq(35)).Return(nil)
		d.notifier.On("Emit", mock.Anything, mock.Anything).Return(errors.New("nats: connection closed"))

		id, err := d.svc.CreateOrder(context.Background(), consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1},
		))

		assert.NoError(t, err)
		assert.Equal(t, uint(12), id)
	})
}

func testOrder(state State) *Order {
	return &Order{
		ID:      10,
		UserID:  consumerID,
		StoreID: storeID,
		State:   state,
	}
}

func TestService_UpdateOrderState(t *testing.T) {
	type privileges map[uint][]user.Privilege

	both := []user.Privilege{user.PrivilegeConsumer, user.PrivilegeStoreManager}

	tests := []struct {
		name       string
		order      *Order
		owner      uint
		actor      uint
		next       State
		privileges privileges
		wantErr    error
	}{
		{
			name:       "manager starts preparing",
			order:      testOrder(StatePending),
			owner:      managerID,
			actor:      managerID,
			next:       StatePreparing,
			privileges: privileges{managerID: {user.PrivilegeStoreManager}},
		},
		{
			name:       "manager cannot complete",
			order:      testOrder(StatePreparing),
			owner:      managerID,
			actor:      managerID,
			next:       StateCompleted,
			privileges: privileges{managerID: {user.PrivilegeStoreManager}},
			wantErr:    ErrInvalidStateTransition,
		},
		{
			name:       "consumer completes prepared order",
			order:      testOrder(StatePrepared),
			owner:      managerID,
			actor:      consumerID,
			next:       StateCompleted,
			privileges: privileges{consumerID: {user.PrivilegeConsumer}},
		},
		{
			name:       "consumer cannot start preparing",
			order:      testOrder(StatePending),
			owner:      managerID,
			actor:      consumerID,
			next:       StatePreparing,
			privileges: privileges{consumerID: {user.PrivilegeConsumer}},
			wantErr:    ErrInvalidStateTransition,
		},
		{
			name:       "consumer cancels pending order",
			order:      testOrder(StatePending),
			owner:      managerID,
			actor:      consumerID,
			next:       StateCancelled,
			privileges: privileges{consumerID: {user.PrivilegeConsumer}},
		},
		{
			name:       "third party sees not found",
			order:      testOrder(StatePending),
			owner:      managerID,
			actor:      strangerID,
			next:       StateCancelled,
			privileges: privileges{strangerID: both},
			wantErr:    ErrOrderNotFound,
		},
		{
			name:    "owner without manager privilege",
			order:   testOrder(StatePending),
			owner:   managerID,
			actor:   managerID,
			next:    StatePreparing,
			wantErr: ErrInvalidStateTransition,
		},
		{
			name:       "owner ordering from own store may act as manager",
			order:      &Order{ID: 10, UserID: managerID, StoreID: storeID, State: StatePending},
			owner:      managerID,
			actor:      managerID,
			next:       StatePreparing,
			privileges: privileges{managerID: both},
		},
		{
			name:       "owner ordering from own store may act as consumer",
			order:      &Order{ID: 10, UserID: managerID, StoreID: storeID, State: StatePrepared},
			owner:      managerID,
			actor:      managerID,
			next:       StateCompleted,
			privileges: privileges{managerID: both},
		},
		{
			name:       "terminal state",
			order:      testOrder(StateCompleted),
			owner:      managerID,
			actor:      managerID,
			next:       StateCancelled,
			privileges: privileges{managerID: {user.PrivilegeStoreManager}},
			wantErr:    ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newServiceDeps()

			d.repo.On("GetOrder", mock.Anything, tt.order.ID).Return(tt.order, nil)
			d.stores.On("OwnerID", mock.Anything, tt.order.StoreID).Return(tt.owner, nil)
			for _, uid := range []uint{consumerID, managerID, strangerID} {
				held := map[user.Privilege]bool{}
				for _, p := range tt.privileges[uid] {
					held[p] = true
				}
				for _, p := range []user.Privilege{user.PrivilegeConsumer, user.PrivilegeStoreManager} {
					d.privileges.On("HasPrivilege", mock.Anything, uid, p).Return(held[p], nil).Maybe()
				}
			}

			from := tt.order.State
			if tt.wantErr == nil {
				d.repo.On("UpdateStateIfCurrent", mock.Anything, tt.order.ID, from, tt.next).Return(nil).Once()
				d.notifier.On("Emit", mock.Anything, mock.MatchedBy(func(ev events.OrderEvent) bool {
					return ev.EventType == events.EventOrderStateChanged &&
						ev.FromState == string(from) &&
						ev.ToState == string(tt.next) &&
						ev.ActorID == tt.actor
				})).Return(nil).Once()
			}

			err := d.svc.UpdateOrderState(context.Background(), tt.actor, tt.order.ID, tt.next)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				d.repo.AssertNotCalled(t, "UpdateStateIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				d.notifier.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			d.repo.AssertExpectations(t)
			d.notifier.AssertExpectations(t)
			assert.Equal(t, 1.0, testutil.ToFloat64(
				d.metrics.StateTransitions.WithLabelValues(string(from), string(tt.next)),
			))
		})
	}
}

func TestService_EventsOutliveCallerCancellation(t *testing.T) {
	liveCtx := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

	t.Run("Create", func(t *testing.T) {
		d := newServiceDeps()
		tx := d.repo.Tx
		d.repo.On("WithTx", mock.Anything).Return(nil)
		tx.On("FindOrderableMeals", mock.Anything, storeID, []uint{2}).
			Return(map[uint]Meal{2: plainRice()}, nil)
		tx.On("InsertOrder", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*Order).ID = 12
		}).Return(nil)
		tx.On("InsertDetails", mock.Anything, mock.Anything).Return(nil)
		tx.On("UpdateTotalPrice", mock.Anything, uint(12), decimalEq(35)).Return(nil)
		d.notifier.On("Emit", liveCtx, mock.Anything).Return(nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		id, err := d.svc.CreateOrder(ctx, consumerID, storeID, validRequest(
			RequestItem{MealID: 2, Quantity: 1},
		))
		require.NoError(t, err)
		assert.Equal(t, uint(12), id)
		d.notifier.AssertExpectations(t)
	})

	t.Run("Transition", func(t *testing.T) {
		d := newServiceDeps()
		o := testOrder(StatePending)
		d.repo.On("GetOrder", mock.Anything, o.ID).Return(o, nil)
		d.stores.On("OwnerID", mock.Anything, storeID).Return(managerID, nil)
		d.privileges.On("HasPrivilege", mock.Anything, managerID, user.PrivilegeStoreManager).Return(true, nil)
		d.repo.On("UpdateStateIfCurrent", mock.Anything, o.ID, StatePending, StatePreparing).Return(nil)
		d.notifier.On("Emit", liveCtx, mock.Anything).Return(nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, d.svc.UpdateOrderState(ctx, managerID, o.ID, StatePreparing))
		d.notifier.AssertExpectations(t)
	})
}

func TestService_UpdateOrderState_Scenario(t *testing.T) {
	d := newServiceDeps()
	o := testOrder(StatePending)

	d.repo.On("GetOrder", mock.Anything, o.ID).Return(o, nil)
	d.stores.On("OwnerID", mock.Anything, storeID).Return(managerID, nil)
	d.privileges.On("HasPrivilege", mock.Anything, managerID, user.PrivilegeStoreManager).Return(true, nil)
	d.privileges.On("HasPrivilege", mock.Anything, consumerID, user.PrivilegeConsumer).Return(true, nil)
	d.repo.On("UpdateStateIfCurrent", mock.Anything, o.ID, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			o.State = args.Get(3).(State)
		}).Return(nil)
	d.notifier.On("Emit", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	require.NoError(t, d.svc.UpdateOrderState(ctx, managerID, o.ID, StatePreparing))
	assert.ErrorIs(t, d.svc.UpdateOrderState(ctx, managerID, o.ID, StateCompleted), ErrInvalidStateTransition)
	assert.ErrorIs(t, d.svc.UpdateOrderState(ctx, consumerID, o.ID, StateCompleted), ErrInvalidStateTransition)
	require.NoError(t, d.svc.UpdateOrderState(ctx, managerID, o.ID, StatePrepared))
	require.NoError(t, d.svc.UpdateOrderState(ctx, consumerID, o.ID, StateCompleted))
	assert.Equal(t, StateCompleted, o.State)
}

func TestService_UpdateOrderState_Errors(t *testing.T) {
	t.Run("Unknown target state", func(t *testing.T) {
		d := newServiceDeps()

		err := d.svc.UpdateOrderState(context.Background(), managerID, 10, State("paid"))

		assert.ErrorIs(t, err, ErrInvalidState)
		d.repo.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	})

	t.Run("Missing order", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("GetOrder", mock.Anything, uint(10)).Return(nil, ErrOrderNotFound)

		err := d.svc.UpdateOrderState(context.Background(), managerID, 10, StatePreparing)

		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("Lost compare-and-swap", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("GetOrder", mock.Anything, uint(10)).Return(testOrder(StatePending), nil)
		d.stores.On("OwnerID", mock.Anything, storeID).Return(managerID, nil)
		d.privileges.On("HasPrivilege", mock.Anything, managerID, user.PrivilegeStoreManager).Return(true, nil)
		d.repo.On("UpdateStateIfCurrent", mock.Anything, uint(10), StatePending, StatePreparing).
			Return(ErrStateConflict)

		err := d.svc.UpdateOrderState(context.Background(), managerID, 10, StatePreparing)

		assert.ErrorIs(t, err, ErrStateConflict)
		d.notifier.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	})

	t.Run("Privilege lookup failure", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("GetOrder", mock.Anything, uint(10)).Return(testOrder(StatePending), nil)
		d.stores.On("OwnerID", mock.Anything, storeID).Return(managerID, nil)
		d.privileges.On("HasPrivilege", mock.Anything, managerID, user.PrivilegeStoreManager).
			Return(false, errors.New("db down"))

		err := d.svc.UpdateOrderState(context.Background(), managerID, 10, StatePreparing)

		assert.EqualError(t, err, "db down")
	})
}

func TestService_CheckedGetOrderWithDetails(t *testing.T) {
	details := []Detail{{ID: 1, OrderID: 10, MealID: 1, Quantity: 2}}

	setup := func(owner uint, ownerErr error) *serviceDeps {
		d := newServiceDeps()
		d.repo.On("GetOrder", mock.Anything, uint(10)).Return(testOrder(StatePending), nil)
		d.repo.On("GetOrderDetails", mock.Anything, uint(10)).Return(details, nil)
		d.stores.On("OwnerID", mock.Anything, storeID).Return(owner, ownerErr)
		return d
	}

	t.Run("Consumer", func(t *testing.T) {
		d := setup(managerID, nil)
		got, err := d.svc.CheckedGetOrderWithDetails(context.Background(), consumerID, 10)
		require.NoError(t, err)
		assert.Equal(t, uint(10), got.ID)
		assert.Equal(t, details, got.Details)
	})

	t.Run("Store manager", func(t *testing.T) {
		d := setup(managerID, nil)
		_, err := d.svc.CheckedGetOrderWithDetails(context.Background(), managerID, 10)
		assert.NoError(t, err)
	})

	t.Run("Third party", func(t *testing.T) {
		d := setup(managerID, nil)
		_, err := d.svc.CheckedGetOrderWithDetails(context.Background(), strangerID, 10)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		d.repo.AssertNotCalled(t, "GetOrderDetails", mock.Anything, mock.Anything)
	})

	t.Run("Store gone", func(t *testing.T) {
		d := setup(0, store.ErrStoreNotFound)
		_, err := d.svc.CheckedGetOrderWithDetails(context.Background(), consumerID, 10)
		assert.NoError(t, err)
	})

	t.Run("Store lookup failure", func(t *testing.T) {
		d := setup(0, errors.New("timeout"))
		_, err := d.svc.CheckedGetOrderWithDetails(context.Background(), consumerID, 10)
		assert.Error(t, err)
	})

	t.Run("Missing order", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("GetOrder", mock.Anything, uint(99)).Return(nil, ErrOrderNotFound)
		_, err := d.svc.CheckedGetOrderWithDetails(context.Background(), consumerID, 99)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestService_GetOrderWithDetails(t *testing.T) {
	d := newServiceDeps()
	d.repo.On("GetOrder", mock.Anything, uint(10)).Return(testOrder(StatePrepared), nil)
	d.repo.On("GetOrderDetails", mock.Anything, uint(10)).Return([]Detail{}, nil)

	got, err := d.svc.GetOrderWithDetails(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, StatePrepared, got.State)
	assert.Empty(t, got.Details)
	d.stores.AssertNotCalled(t, "OwnerID", mock.Anything, mock.Anything)
}

func TestService_Listings(t *testing.T) {
	ctx := context.Background()
	orders := []Order{*testOrder(StateCompleted)}

	t.Run("By user", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("ListOrdersByUser", mock.Anything, consumerID).Return(orders, nil)
		got, err := d.svc.GetOrdersByUser(ctx, consumerID)
		assert.NoError(t, err)
		assert.Equal(t, orders, got)
	})

	t.Run("By store", func(t *testing.T) {
		d := newServiceDeps()
		d.repo.On("ListOrdersByStore", mock.Anything, storeID).Return(orders, nil)
		got, err := d.svc.GetOrdersByStore(ctx, storeID)
		assert.NoError(t, err)
		assert.Equal(t, orders, got)
	})

	t.Run("Completed within window", func(t *testing.T) {
		d := newServiceDeps()
		begin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := begin.AddDate(0, 1, 0)
		d.repo.On("ListOrdersByStoreStateAndTime", mock.Anything, storeID, StateCompleted, begin, end).
			Return(orders, nil)

		got, err := d.svc.GetCompletedOrdersByStoreAndTime(ctx, storeID, begin, end)
		assert.NoError(t, err)
		assert.Equal(t, orders, got)
	})

	t.Run("Offset bounds are queried as UTC instants", func(t *testing.T) {
		d := newServiceDeps()
		taipei := time.FixedZone("UTC+8", 8*60*60)
		begin := time.Date(2024, 1, 1, 0, 0, 0, 0, taipei)
		end := time.Date(2024, 1, 2, 0, 0, 0, 0, taipei)
		utcInstant := func(want time.Time) interface{} {
			return mock.MatchedBy(func(got time.Time) bool {
				return got.Location() == time.UTC && got.Equal(want)
			})
		}
		d.repo.On("ListOrdersByStoreStateAndTime", mock.Anything, storeID, StateCompleted,
			utcInstant(time.Date(2023, 12, 31, 16, 0, 0, 0, time.UTC)),
			utcInstant(time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)),
		).Return(orders, nil).Once()

		got, err := d.svc.GetCompletedOrdersByStoreAndTime(ctx, storeID, begin, end)
		assert.NoError(t, err)
		assert.Equal(t, orders, got)
		d.repo.AssertExpectations(t)
	})
}

func TestService_MealSalesCount(t *testing.T) {
	t.Run("Counts completed orders", func(t *testing.T) {
		d := newServiceDeps()
		want := []MealSales{{MealID: 1, Count: 4}}
		d.repo.On("MealSalesCount", mock.Anything, []uint{1, 2}, StateCompleted).Return(want, nil)

		got, err := d.svc.MealSalesCount(context.Background(), []uint{1, 2})
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("No ids", func(t *testing.T) {
		d := newServiceDeps()
		got, err := d.svc.MealSalesCount(context.Background(), nil)
		assert.NoError(t, err)
		assert.Empty(t, got)
		d.repo.AssertNotCalled(t, "MealSalesCount", mock.Anything, mock.Anything, mock.Anything)
	})
}
