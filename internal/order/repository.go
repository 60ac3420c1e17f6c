package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodorder-be/internal/logger"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// totalPlaceholder marks an order header whose total has not been computed
// yet. It is only ever visible inside the creating transaction.
var totalPlaceholder = decimal.NewFromInt(-1)

const orderColumns = `id, user_id, store_id, notes, payment_type, delivery_method, state, created_at, calculated_total_price`

type Repository interface {
	// WithTx runs fn inside one transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error

	GetOrder(ctx context.Context, orderID uint) (*Order, error)
	GetOrderDetails(ctx context.Context, orderID uint) ([]Detail, error)
	ListOrdersByUser(ctx context.Context, userID uint) ([]Order, error)
	ListOrdersByStore(ctx context.Context, storeID uint) ([]Order, error)
	ListOrdersByStoreStateAndTime(ctx context.Context, storeID uint, state State, begin, end time.Time) ([]Order, error)

	// UpdateStateIfCurrent moves the order to `to` only while it is still in
	// `from`; otherwise it reports ErrStateConflict.
	UpdateStateIfCurrent(ctx context.Context, orderID uint, from, to State) error

	MealSalesCount(ctx context.Context, mealIDs []uint, state State) ([]MealSales, error)
}

// TxRepository holds the writes that make up order creation.
type TxRepository interface {
	FindOrderableMeals(ctx context.Context, storeID uint, mealIDs []uint) (map[uint]Meal, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertDetails(ctx context.Context, details []Detail) error
	UpdateTotalPrice(ctx context.Context, orderID uint, total decimal.Decimal) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "WithTx"),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("failed to rollback transaction", zap.Error(rbErr))
			return
		}
		log.Debug("transaction rolled back")
	}()

	if err := fn(&txRepository{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (r *repository) GetOrder(ctx context.Context, orderID uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query order",
			zap.String("layer", "repository"),
			zap.Uint("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	return o, nil
}

func (r *repository) GetOrderDetails(ctx context.Context, orderID uint) ([]Detail, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetOrderDetails"),
		zap.Uint("order_id", orderID),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, meal_id, quantity, notes, customizations, calculated_price_per_item
		FROM order_details
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		log.Error("failed to query order details", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	details := []Detail{}
	for rows.Next() {
		var d Detail
		if err := rows.Scan(
			&d.ID,
			&d.OrderID,
			&d.MealID,
			&d.Quantity,
			&d.Notes,
			&d.Customizations,
			&d.CalculatedPricePerItem,
		); err != nil {
			log.Error("failed to scan order detail row", zap.Error(err))
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}
	return details, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, userID uint) ([]Order, error) {
	return r.listOrders(ctx, "ListOrdersByUser", `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
}

func (r *repository) ListOrdersByStore(ctx context.Context, storeID uint) ([]Order, error) {
	return r.listOrders(ctx, "ListOrdersByStore", `
		SELECT `+orderColumns+`
		FROM orders
		WHERE store_id = $1
		ORDER BY created_at DESC, id DESC
	`, storeID)
}

func (r *repository) ListOrdersByStoreStateAndTime(
	ctx context.Context,
	storeID uint,
	state State,
	begin, end time.Time,
) ([]Order, error) {
	return r.listOrders(ctx, "ListOrdersByStoreStateAndTime", `
		SELECT `+orderColumns+`
		FROM orders
		WHERE store_id = $1
		  AND state = $2
		  AND created_at >= $3
		  AND created_at < $4
		ORDER BY created_at, id
	`, storeID, state, begin, end)
}

func (r *repository) listOrders(ctx context.Context, method, query string, args ...any) ([]Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	log.Debug("list orders success", zap.Int("count", len(orders)))
	return orders, nil
}

func (r *repository) UpdateStateIfCurrent(ctx context.Context, orderID uint, from, to State) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET state = $1
		WHERE id = $2
		  AND state = $3
	`, to, orderID, from)
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}
	if affected == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *repository) MealSalesCount(ctx context.Context, mealIDs []uint, state State) ([]MealSales, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "MealSalesCount"),
		zap.Int("meal_count", len(mealIDs)),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT d.meal_id, COALESCE(SUM(d.quantity), 0)
		FROM orders o
		JOIN order_details d ON d.order_id = o.id
		WHERE o.state = $1
		  AND d.meal_id = ANY($2)
		GROUP BY d.meal_id
		ORDER BY d.meal_id
	`, state, pq.Array(toInt64s(mealIDs)))
	if err != nil {
		log.Error("failed to query meal sales", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	sales := []MealSales{}
	for rows.Next() {
		var s MealSales
		if err := rows.Scan(&s.MealID, &s.Count); err != nil {
			log.Error("failed to scan meal sales row", zap.Error(err))
			return nil, err
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}
	return sales, nil
}

type txRepository struct {
	tx *sql.Tx
}

// FindOrderableMeals returns the requested meals that exist, belong to
// storeID and are available, keyed by id. Missing ids are simply absent.
func (t *txRepository) FindOrderableMeals(ctx context.Context, storeID uint, mealIDs []uint) (map[uint]Meal, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, store_id, price, is_available, customizations
		FROM meals
		WHERE id = ANY($1)
		  AND store_id = $2
		  AND is_available = TRUE
	`, pq.Array(toInt64s(mealIDs)), storeID)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	meals := make(map[uint]Meal, len(mealIDs))
	for rows.Next() {
		var m Meal
		if err := rows.Scan(&m.ID, &m.StoreID, &m.Price, &m.IsAvailable, &m.Customizations); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return meals, nil
}

// InsertOrder writes the header with the placeholder total and fills in
// the generated id and creation time.
func (t *txRepository) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			user_id, store_id, notes, payment_type,
			delivery_method, state, calculated_total_price
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`,
		o.UserID,
		o.StoreID,
		o.Notes,
		o.PaymentType,
		o.DeliveryMethod,
		o.State,
		totalPlaceholder,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.CalculatedTotalPrice = totalPlaceholder
	return nil
}

// InsertDetails writes all lines in a single statement and assigns the
// generated ids back in insertion order.
func (t *txRepository) InsertDetails(ctx context.Context, details []Detail) error {
	if len(details) == 0 {
		return nil
	}

	const cols = 6
	var b strings.Builder
	b.WriteString(`INSERT INTO order_details (order_id, meal_id, quantity, notes, customizations, calculated_price_per_item) VALUES `)
	args := make([]any, 0, len(details)*cols)
	for i, d := range details {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * cols
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, d.OrderID, d.MealID, d.Quantity, d.Notes, d.Customizations, d.CalculatedPricePerItem)
	}
	b.WriteString(" RETURNING id")

	rows, err := t.tx.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("insert order details: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(details) {
			return fmt.Errorf("insert order details: more ids returned than rows inserted")
		}
		if err := rows.Scan(&details[i].ID); err != nil {
			return fmt.Errorf("scan order detail id: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert order details: %w", err)
	}
	if i != len(details) {
		return fmt.Errorf("insert order details: %d ids returned for %d rows", i, len(details))
	}
	return nil
}

func (t *txRepository) UpdateTotalPrice(ctx context.Context, orderID uint, total decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET calculated_total_price = $1
		WHERE id = $2
	`, total, orderID)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update order total: %w", ErrOrderNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.StoreID,
		&o.Notes,
		&o.PaymentType,
		&o.DeliveryMethod,
		&o.State,
		&o.CreatedAt,
		&o.CalculatedTotalPrice,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func toInt64s(ids []uint) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
