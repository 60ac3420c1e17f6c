package user

import "errors"

var ErrUnknownPrivilege = errors.New("unknown privilege")

// Privilege is a capability granted to a user account.
type Privilege string

const (
	PrivilegeConsumer     Privilege = "consumer"
	PrivilegeStoreManager Privilege = "store_manager"
)

func (p Privilege) Valid() bool {
	return p == PrivilegeConsumer || p == PrivilegeStoreManager
}
