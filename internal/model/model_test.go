package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.False(t, Role(1).Valid())

	assert.Equal(t, "Admin", RoleAdmin.Name())
	assert.Equal(t, "Staff", RoleStaff.Name())
	assert.Equal(t, "Unknown", Role(7).Name())

	r, ok := RoleFromName("Staff")
	assert.True(t, ok)
	assert.Equal(t, RoleStaff, r)
	_, ok = RoleFromName("root")
	assert.False(t, ok)
}

func TestUser_NeverSerializesHash(t *testing.T) {
	u := User{ID: "u1", LoginName: "alice123", PasswordHash: "$2a$10$abc", Role: RoleStaff}
	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "$2a$10$abc")
	assert.Contains(t, string(b), `"loginName":"alice123"`)
}

func TestRole_SerializesAsNumber(t *testing.T) {
	b, err := json.Marshal(User{Role: RoleAdmin})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"role":99`)
}

func TestRevocationReason_Valid(t *testing.T) {
	assert.True(t, ReasonLogout.Valid())
	assert.True(t, ReasonSecurity.Valid())
	assert.True(t, ReasonExpired.Valid())
	assert.False(t, RevocationReason("stolen").Valid())
}
