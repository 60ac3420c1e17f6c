package order

// CanAccess reports whether actorID may read o: either the consumer who
// placed it or the owner of the store it was placed with. storeOwnerID is
// zero when the store owner is unknown.
func CanAccess(actorID uint, o *Order, storeOwnerID uint) bool {
	if o == nil || actorID == 0 {
		return false
	}
	if o.UserID == actorID {
		return true
	}
	return storeOwnerID != 0 && storeOwnerID == actorID
}
