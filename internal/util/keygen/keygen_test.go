package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	pw, err := GeneratePassword(DefaultPasswordLength)
	require.NoError(t, err)
	assert.Len(t, pw, DefaultPasswordLength)
	for _, r := range pw {
		assert.True(t, strings.ContainsRune(passwordAlphabet, r), "unexpected rune %q", r)
	}

	other, err := GeneratePassword(DefaultPasswordLength)
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestGeneratePassword_TooShort(t *testing.T) {
	t.Parallel()
	_, err := GeneratePassword(8)
	assert.Error(t, err)
}

func TestHTPasswd_RoundTrip(t *testing.T) {
	t.Parallel()

	line, err := HTPasswd("deploy", "s3cret-value")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "deploy:$2"))

	assert.True(t, VerifyHTPasswd(line, "deploy", "s3cret-value"))
	assert.False(t, VerifyHTPasswd(line, "deploy", "wrong"))
	assert.False(t, VerifyHTPasswd(line, "other", "s3cret-value"))
}

func TestHTPasswd_InvalidUsername(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "a:b"} {
		_, err := HTPasswd(name, "pw")
		assert.Error(t, err, "username %q", name)
	}
}
