package authorize

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsValidDomain(t *testing.T) {
	valid := []Domain{DomainSys, WildcardDomain, "facility:550e8400-e29b-41d4-a716-446655440000"}
	invalid := []Domain{"", "random", "facility:", "facility:invalid-uuid",
		"facility:{550e8400-e29b-41d4-a716-446655440000}",
		"clinic:550e8400-e29b-41d4-a716-446655440000"}

	for _, d := range valid {
		assert.True(t, IsValidDomain(d), d)
	}
	for _, d := range invalid {
		assert.False(t, IsValidDomain(d), d)
	}
}

func TestFacilityDomainRoundTrip(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	d := FacilityDomain(id)
	assert.Equal(t, Domain("facility:550e8400-e29b-41d4-a716-446655440000"), d)

	got, ok := ParseFacilityDomain(d)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = ParseFacilityDomain(DomainSys)
	assert.False(t, ok)
}

func TestDefaultPoliciesAreWellFormed(t *testing.T) {
	for _, p := range DefaultPolicies() {
		assert.Contains(t, KnownRoles, p.Subject)
		assert.True(t, IsValidDomain(p.Domain), "%+v", p)
		if p.Object != WildcardResource {
			assert.Contains(t, KnownResources, p.Object)
		}
		if p.Action != WildcardAction {
			assert.Contains(t, KnownActions, p.Action)
		}
	}
}
