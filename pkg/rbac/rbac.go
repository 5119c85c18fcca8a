package rbac

// 角色常量
const (
	RoleHomeowner  = "homeowner"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// 权限常量
const (
	PermissionTransitionStage = "stage:transition"
	PermissionReadProject     = "project:read"
	PermissionCreateDispute   = "dispute:create"
	PermissionReviewDispute   = "dispute:review"
	PermissionSetPaymentLink  = "payment_link:set"
	PermissionDeclarePayment  = "manual_payment:declare"
	PermissionConfirmPayment  = "manual_payment:confirm"
	PermissionOverrideProject = "project:override"
	PermissionManageBilling   = "billing:manage"
	PermissionReplayOutbox    = "outbox:replay"
)

// 角色权限映射。Ownership of the specific project is checked by the services.
var rolePermissions = map[string][]string{
	RoleHomeowner: {
		PermissionTransitionStage,
		PermissionReadProject,
		PermissionCreateDispute,
		PermissionDeclarePayment,
		PermissionManageBilling,
	},
	RoleContractor: {
		PermissionTransitionStage,
		PermissionReadProject,
		PermissionSetPaymentLink,
		PermissionManageBilling,
	},
	RoleAdmin: {
		PermissionTransitionStage,
		PermissionReadProject,
		PermissionReviewDispute,
		PermissionSetPaymentLink,
		PermissionConfirmPayment,
		PermissionOverrideProject,
		PermissionReplayOutbox,
	},
}

// IsKnownRole reports whether role is one of the recognised roles.
func IsKnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID int64, role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int64
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Permission
}
