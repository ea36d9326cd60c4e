package reqcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoles_DefaultsToAnonymous(t *testing.T) {
	assert.Equal(t, []string{AnonymousRole}, Roles(context.Background()))

	ctx := SetRoles(context.Background(), nil)
	assert.Equal(t, []string{AnonymousRole}, Roles(ctx))
}

func TestRoles_RoundTrip(t *testing.T) {
	ctx := SetRoles(context.Background(), []string{"reader", "editor"})
	assert.Equal(t, []string{"reader", "editor"}, Roles(ctx))
}

func TestEffectiveRole_DefaultsToAnonymous(t *testing.T) {
	assert.Equal(t, AnonymousRole, EffectiveRole(context.Background()))

	ctx := SetEffectiveRole(context.Background(), "")
	assert.Equal(t, AnonymousRole, EffectiveRole(ctx))
}

func TestEffectiveRole_RoundTrip(t *testing.T) {
	ctx := SetEffectiveRole(context.Background(), "editor")
	assert.Equal(t, "editor", EffectiveRole(ctx))
}
