package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticRoleExists(t *testing.T) {
	cat := NewStatic([]string{"system", "admin"})
	ctx := context.Background()

	assert.True(t, cat.RoleExists(ctx, "system"))
	assert.True(t, cat.RoleExists(ctx, "admin"))
	assert.False(t, cat.RoleExists(ctx, "nobody"))
	assert.False(t, cat.RoleExists(ctx, "System"), "role names are case-sensitive")
	assert.False(t, cat.RoleExists(ctx, ""))
}
