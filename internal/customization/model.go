package customization

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type GroupKind string

const (
	KindRadio    GroupKind = "radio"
	KindCheckbox GroupKind = "checkbox"
)

func (k GroupKind) Valid() bool {
	return k == KindRadio || k == KindCheckbox
}

// UnmarshalJSON rejects kinds other than radio and checkbox so a stored
// schema can never decode into an unconstrained group.
func (k *GroupKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownGroupKind, string(b))
	}
	kind := GroupKind(s)
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownGroupKind, s)
	}
	*k = kind
	return nil
}

// Item is one selectable option offered by a meal.
type Item struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Enabled bool            `json:"enabled"`
}

type Group struct {
	Kind  GroupKind `json:"type"`
	Title string    `json:"title"`
	Items []Item    `json:"items"`
}

func (g Group) hasEnabledItem() bool {
	for _, item := range g.Items {
		if item.Enabled {
			return true
		}
	}
	return false
}

// Schema is the customization tree stored on a meal.
type Schema struct {
	SelectionGroups []Group `json:"selectionGroups"`
}

// ItemCount is the number of booleans a selection against s must carry.
func (s Schema) ItemCount() int {
	n := 0
	for _, g := range s.SelectionGroups {
		n += len(g.Items)
	}
	return n
}

type ResolvedItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Enabled  bool            `json:"enabled"`
	Selected bool            `json:"selected"`
}

type ResolvedGroup struct {
	Kind  GroupKind      `json:"type"`
	Title string         `json:"title"`
	Items []ResolvedItem `json:"items"`
}

func (g ResolvedGroup) SelectedCount() int {
	n := 0
	for _, item := range g.Items {
		if item.Selected {
			n++
		}
	}
	return n
}

// Resolved is the order-time snapshot of a schema with every item's
// selection fixed. It is what an order line persists.
type Resolved struct {
	SelectionGroups []ResolvedGroup `json:"selectionGroups"`
}
