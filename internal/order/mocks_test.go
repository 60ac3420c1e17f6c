package order

import (
	"context"
	"time"

	"foodorder-be/internal/events"
	"foodorder-be/internal/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
	Tx *MockTx
}

func (m *MockRepository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *MockRepository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetOrderDetails(ctx context.Context, orderID uint) ([]Detail, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Detail), args.Error(1)
}

func (m *MockRepository) ListOrdersByUser(ctx context.Context, userID uint) ([]Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockRepository) ListOrdersByStore(ctx context.Context, storeID uint) ([]Order, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockRepository) ListOrdersByStoreStateAndTime(ctx context.Context, storeID uint, state State, begin, end time.Time) ([]Order, error) {
	args := m.Called(ctx, storeID, state, begin, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockRepository) UpdateStateIfCurrent(ctx context.Context, orderID uint, from, to State) error {
	return m.Called(ctx, orderID, from, to).Error(0)
}

func (m *MockRepository) MealSalesCount(ctx context.Context, mealIDs []uint, state State) ([]MealSales, error) {
	args := m.Called(ctx, mealIDs, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]MealSales), args.Error(1)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) FindOrderableMeals(ctx context.Context, storeID uint, mealIDs []uint) (map[uint]Meal, error) {
	args := m.Called(ctx, storeID, mealIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint]Meal), args.Error(1)
}

func (m *MockTx) InsertOrder(ctx context.Context, o *Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockTx) InsertDetails(ctx context.Context, details []Detail) error {
	return m.Called(ctx, details).Error(0)
}

func (m *MockTx) UpdateTotalPrice(ctx context.Context, orderID uint, total decimal.Decimal) error {
	return m.Called(ctx, orderID, total).Error(0)
}

type MockStoreLookup struct {
	mock.Mock
}

func (m *MockStoreLookup) OwnerID(ctx context.Context, storeID uint) (uint, error) {
	args := m.Called(ctx, storeID)
	return args.Get(0).(uint), args.Error(1)
}

type MockPrivileges struct {
	mock.Mock
}

func (m *MockPrivileges) HasPrivilege(ctx context.Context, userID uint, p user.Privilege) (bool, error) {
	args := m.Called(ctx, userID, p)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Emit(ctx context.Context, ev events.OrderEvent) error {
	return m.Called(ctx, ev).Error(0)
}
