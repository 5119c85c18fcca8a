package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(1, RoleHomeowner, PermissionDeclarePayment))
	assert.NoError(t, CheckPermission(2, RoleAdmin, PermissionConfirmPayment))

	err := CheckPermission(1, RoleHomeowner, PermissionConfirmPayment)
	var denied *PermissionDeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, int64(1), denied.UserID)

	assert.Error(t, CheckPermission(3, "guest", PermissionReadProject))
	assert.False(t, IsKnownRole("guest"))
	assert.True(t, IsKnownRole(RoleContractor))
}
