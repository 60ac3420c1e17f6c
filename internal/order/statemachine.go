package order

import "fmt"

// Role is the capacity in which an actor changes an order's state.
type Role string

const (
	RoleConsumer     Role = "consumer"
	RoleStoreManager Role = "store_manager"
)

// transitions holds one table per acting role. A (role, state) pair that
// is absent has no outgoing edges for that role.
var transitions = map[Role]map[State][]State{
	RoleStoreManager: {
		StatePending:   {StatePreparing, StateCancelled},
		StatePreparing: {StatePrepared, StateCancelled},
	},
	RoleConsumer: {
		StatePending:  {StateCancelled},
		StatePrepared: {StateCompleted},
	},
}

// CanTransition reports whether role may move an order from one state to
// another.
func CanTransition(role Role, from, to State) bool {
	for _, next := range transitions[role][from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition allows the change when any of the given roles allows it.
// Roles are evaluated in the order passed.
func CheckTransition(from, to State, roles ...Role) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	for _, role := range roles {
		if CanTransition(role, from, to) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for roles %v", ErrInvalidStateTransition, from, to, roles)
}
