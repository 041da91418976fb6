package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNickAcceptsAllowedCharset(t *testing.T) {
	for _, s := range []string{"Alice", "bob-2", "a@b/c:d.e^f+g!h_i*j-k", "x", strings.Repeat("a", 40)} {
		assert.True(t, IsValidNick(s), "expected %q to be valid", s)
	}
}

func TestIsValidNickRejectsEmptyOverlongAndBadChars(t *testing.T) {
	cases := []string{
		"",
		strings.Repeat("a", 41),
		"bob$",
		"bob ",
		"bob\n",
		"émile",
	}
	for _, s := range cases {
		assert.False(t, IsValidNick(s), "expected %q to be invalid", s)
	}
}
