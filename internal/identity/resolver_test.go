package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fxlane/fxlane/errs"
	"github.com/fxlane/fxlane/internal/schema"
)

func TestResolverMapsParticipantsToRoles(t *testing.T) {
	trade := schema.Trade{
		Maker: schema.Participant{ID: "maker-1"},
		Taker: schema.Participant{ID: "taker-1"},
	}

	cases := map[string]schema.Role{
		"maker-1":  schema.RoleMaker,
		"taker-1":  schema.RoleTaker,
		"stranger": schema.RoleObserver,
	}
	for userID, expected := range cases {
		resolver := NewResolver(Static(userID))
		role, err := resolver.Role(context.Background(), trade)
		require.NoError(t, err)
		require.Equal(t, expected, role, "user %s", userID)
	}
}

func TestEmptyIdentityIsUnauthorized(t *testing.T) {
	resolver := NewResolver(Static(""))
	_, err := resolver.Role(context.Background(), schema.Trade{})
	require.True(t, errs.IsCode(err, errs.CodeUnauthorized))
}
