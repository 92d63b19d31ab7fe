package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	cases := map[string]Type{
		"var":      VAR,
		"function": FUNCTION,
		"typeof":   TYPEOF,
		"with":     WITH,
		"foo":      IDENT,
		"_bar123":  IDENT,
	}
	for ident, want := range cases {
		assert.Equal(t, want, LookupIdent(ident), "ident %q", ident)
	}
}

func TestPositionString(t *testing.T) {
	assert.Equal(t, "3:7", Position{Line: 3, Column: 7}.String())
	assert.Equal(t, "main.js:3:7", Position{File: "main.js", Line: 3, Column: 7}.String())
}
