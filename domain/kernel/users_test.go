package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserRejectsDuplicateName(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", []string{"dispatch"}))
	err := s.CreateUser("alice", "other", nil)
	assert.Error(t, err)
}

func TestAuthenticateAndValidateTokenRoundTrip(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", []string{"dispatch"}))

	token, err := s.Authenticate("alice", "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", nil))

	_, err := s.Authenticate("alice", "wrong", time.Hour)
	assert.Error(t, err)
}

func TestValidateTokenRejectsTamperedToken(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", nil))
	token, err := s.Authenticate("alice", "secret", time.Hour)
	require.NoError(t, err)

	_, err = s.ValidateToken(token + "x")
	assert.Error(t, err)
}

func TestRequirePermissionEnforcesExactMatch(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", []string{"dispatch"}))

	assert.NoError(t, s.RequirePermission("alice", "dispatch"))
	assert.Error(t, s.RequirePermission("alice", "admin"))
}

func TestSetUserPermissionsReplacesEntireSet(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", []string{"dispatch"}))
	require.NoError(t, s.SetUserPermissions("alice", []string{"admin"}))

	perms, err := s.GetUserPermissions("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, perms)
}

func TestRemoveUserThenGetPermissionsFails(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.CreateUser("alice", "secret", nil))
	require.NoError(t, s.RemoveUser("alice"))

	_, err := s.GetUserPermissions("alice")
	assert.Error(t, err)
}
