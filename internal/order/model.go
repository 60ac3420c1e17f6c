package order

import (
	"time"

	"foodorder-be/internal/customization"

	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending   State = "pending"
	StatePreparing State = "preparing"
	StatePrepared  State = "prepared"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

var allStates = []State{StatePending, StatePreparing, StatePrepared, StateCompleted, StateCancelled}

func (s State) Valid() bool {
	for _, st := range allStates {
		if s == st {
			return true
		}
	}
	return false
}

type PaymentType string

const (
	PaymentCash       PaymentType = "cash"
	PaymentCreditCard PaymentType = "credit_card"
	PaymentMonthly    PaymentType = "monthly"
)

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentCreditCard, PaymentMonthly:
		return true
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryDelivery DeliveryMethod = "delivery"
	DeliveryPickup   DeliveryMethod = "pickup"
)

func (d DeliveryMethod) Valid() bool {
	return d == DeliveryDelivery || d == DeliveryPickup
}

type Order struct {
	ID                   uint            `json:"id"`
	UserID               uint            `json:"user_id"`
	StoreID              uint            `json:"store_id"`
	Notes                string          `json:"notes"`
	PaymentType          PaymentType     `json:"payment_type"`
	DeliveryMethod       DeliveryMethod  `json:"delivery_method"`
	State                State           `json:"state"`
	CreatedAt            time.Time       `json:"created_at"`
	CalculatedTotalPrice decimal.Decimal `json:"calculated_total_price"`
}

// Detail is one order line. Customizations and CalculatedPricePerItem are
// frozen at creation and never recomputed from the live meal.
type Detail struct {
	ID                     uint                   `json:"id"`
	OrderID                uint                   `json:"order_id"`
	MealID                 uint                   `json:"meal_id"`
	Quantity               int                    `json:"quantity"`
	Notes                  string                 `json:"notes"`
	Customizations         customization.Resolved `json:"customizations"`
	CalculatedPricePerItem decimal.Decimal        `json:"calculated_price_per_item"`
}

type WithDetails struct {
	Order
	Details []Detail `json:"details"`
}

type Request struct {
	Notes          string         `json:"notes"`
	PaymentType    PaymentType    `json:"payment_type"`
	DeliveryMethod DeliveryMethod `json:"delivery_method"`
	Items          []RequestItem  `json:"items"`
}

type RequestItem struct {
	MealID                uint   `json:"meal_id"`
	Quantity              int    `json:"quantity"`
	Notes                 string `json:"notes"`
	CustomizationStatuses []bool `json:"customization_statuses"`
}

// Meal is the point-in-time view of a menu entry consulted while composing
// an order.
type Meal struct {
	ID             uint
	StoreID        uint
	Price          decimal.Decimal
	IsAvailable    bool
	Customizations customization.Schema
}

type MealSales struct {
	MealID uint  `json:"meal_id"`
	Count  int64 `json:"count"`
}
