package rbac

// Role names every account carries exactly one of.
const (
	RolePharma       = "pharma"
	RoleMedicalStore = "medical_store"
	RoleAdmin        = "admin"
)

// ValidRole reports whether role is one of the known role names.
func ValidRole(role string) bool {
	switch role {
	case RolePharma, RoleMedicalStore, RoleAdmin:
		return true
	}
	return false
}

// CanMutateProduct reports whether the role may create, update or delete
// catalog entries. Ownership of the specific product is checked separately.
func CanMutateProduct(role string) bool {
	return role == RolePharma || role == RoleAdmin
}

// CanPlaceOrder reports whether the role may create purchase orders.
func CanPlaceOrder(role string) bool {
	return role == RoleMedicalStore
}

// CanTransitionOrder reports whether the role may move an order through
// the fulfilment lifecycle.
func CanTransitionOrder(role string) bool {
	return role == RolePharma || role == RoleAdmin
}

// CanRecordPayment reports whether the role may record payments against
// an order. Payments come from the buying side.
func CanRecordPayment(role string) bool {
	return role == RoleMedicalStore || role == RoleAdmin
}

// CanManageUsers reports whether the role may administer other accounts.
func CanManageUsers(role string) bool {
	return role == RoleAdmin
}
