package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	h1, err := HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "123456", h1)
	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword(h1, "123456"))
	assert.True(t, VerifyPassword(h2, "123456"))
	assert.False(t, VerifyPassword(h1, "1234567"))
	assert.False(t, VerifyPassword("not-a-hash", "123456"))
}

func TestHashPassword_OutOfRangeCostFallsBack(t *testing.T) {
	h, err := HashPassword("123456", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestBurnPasswordCheck_UsesConfiguredCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1, 0} {
		assert.NotPanics(t, func() { BurnPasswordCheck("whatever", cost) })

		h := dummyHash(cost)
		require.NotNil(t, h)
		got, err := bcrypt.Cost(h)
		require.NoError(t, err)
		assert.Equal(t, normalizeCost(cost), got)

		// Built once per cost.
		assert.Equal(t, h, dummyHash(cost))
	}
}
