package person

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleCapabilities(t *testing.T) {
	assert.Equal(t, []string{CapabilityAdmin}, RoleAdmin.Capabilities())
	assert.Empty(t, RoleUser.Capabilities())
	assert.Empty(t, Role("editor").Capabilities())

	caps := RoleAdmin.Capabilities()
	caps[0] = "tampered"
	assert.Equal(t, []string{CapabilityAdmin}, RoleAdmin.Capabilities(), "grants must not be shared")
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("root").Valid())
}

func TestPersonCanSignIn(t *testing.T) {
	tests := []struct {
		name    string
		person  Person
		allowed bool
	}{
		{name: "active", person: Person{IsActive: true}, allowed: true},
		{name: "inactive", person: Person{IsActive: false}},
		{name: "deleted", person: Person{IsActive: true, IsDeleted: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.person.CanSignIn())
		})
	}
}
