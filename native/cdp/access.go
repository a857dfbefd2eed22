package cdp

import "github.com/ethereum/go-ethereum/common"

// ManagerRole is the role granting access to the configuration surface.
const ManagerRole = "cdp.manager"

// RoleView reports role membership, as kept by core/state.Manager.
type RoleView interface {
	HasRole(role string, addr []byte) bool
}

// RoleAccess implements AccessControl on top of a role store.
type RoleAccess struct {
	roles RoleView
}

func NewRoleAccess(roles RoleView) RoleAccess {
	return RoleAccess{roles: roles}
}

func (a RoleAccess) IsManager(addr common.Address) bool {
	return a.roles != nil && a.roles.HasRole(ManagerRole, addr.Bytes())
}
