package helper

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, SecretLength)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-Za-z]+$`), a)
	assert.NotEqual(t, a, b)
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)
	assert.NotEqual(t, id, GenerateID())
}

func TestGenerateEventID(t *testing.T) {
	a := GenerateEventID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, GenerateEventID())
}

func TestStableID(t *testing.T) {
	a := StableID("user", "default", "alice")
	assert.Equal(t, a, StableID("user", "default", "alice"))
	assert.NotEqual(t, a, StableID("user", "default", "bob"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), a)
}
