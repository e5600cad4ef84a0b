package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMobile(t *testing.T) {
	cases := map[string]string{
		"9876543210":      "9876543210",
		" 98765 43210 ":   "9876543210",
		"+91 98765-43210": "9876543210",
		"09876543210":     "9876543210",
		"(987) 654-3210":  "9876543210",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMobile(in), in)
	}
}

func TestIsValidMobile(t *testing.T) {
	assert.True(t, IsValidMobile("9876543210"))
	assert.False(t, IsValidMobile("987654321"))
	assert.False(t, IsValidMobile("98765432100"))
	assert.False(t, IsValidMobile("98765x3210"))
	assert.False(t, IsValidMobile(""))
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	assert.NoError(t, err)
	assert.True(t, CheckPassword("s3cret!", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("anything", ""))
}
