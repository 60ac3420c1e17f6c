package customization

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateSchema fails when a group has no enabled item, since such a group
// can never be satisfied by a customer.
func ValidateSchema(s Schema) error {
	for i, g := range s.SelectionGroups {
		if !g.Kind.Valid() {
			return fmt.Errorf("%w: group %d: %w", ErrInvalidSchema, i, ErrUnknownGroupKind)
		}
		if !g.hasEnabledItem() {
			return fmt.Errorf("%w: group %d (%q) has no enabled item", ErrInvalidSchema, i, g.Title)
		}
	}
	return nil
}

// Resolve applies a flat selection (one boolean per item, document order)
// to the schema and checks the per-group constraints.
func Resolve(s Schema, selections []bool) (Resolved, error) {
	if want := s.ItemCount(); len(selections) != want {
		return Resolved{}, fmt.Errorf("%w: got %d, want %d", ErrSelectionLengthMismatch, len(selections), want)
	}

	groups := make([]ResolvedGroup, 0, len(s.SelectionGroups))
	pos := 0
	for gi, g := range s.SelectionGroups {
		items := make([]ResolvedItem, 0, len(g.Items))
		for ii, item := range g.Items {
			selected := selections[pos]
			pos++
			if selected && !item.Enabled {
				return Resolved{}, fmt.Errorf("%w: group %d item %d (%q)", ErrDisabledItemSelected, gi, ii, item.Name)
			}
			items = append(items, ResolvedItem{
				Name:     item.Name,
				Price:    item.Price,
				Enabled:  item.Enabled,
				Selected: selected,
			})
		}
		groups = append(groups, ResolvedGroup{Kind: g.Kind, Title: g.Title, Items: items})
	}

	for gi, g := range groups {
		if g.Kind == KindRadio && g.SelectedCount() != 1 {
			return Resolved{}, fmt.Errorf("%w: group %d (%q) has %d selected", ErrRadioConstraintViolated, gi, g.Title, g.SelectedCount())
		}
	}

	return Resolved{SelectionGroups: groups}, nil
}

// Price is the surcharge implied by the selected items.
func Price(r Resolved) decimal.Decimal {
	total := decimal.Zero
	for _, g := range r.SelectionGroups {
		for _, item := range g.Items {
			if item.Selected {
				total = total.Add(item.Price)
			}
		}
	}
	return total
}
