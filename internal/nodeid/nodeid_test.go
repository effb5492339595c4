package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.False(t, Valid("not-an-id"))
}

func TestPinRef_RoundTrip(t *testing.T) {
	testRefs := []string{
		"node-1:exec_in",
		"2f0c2b4e-7e0a-4a51-9d5f-0f9f4c5b8c11:0b8b5c1e-2ed4-4d0f-b0e4-9b6f6c1a2d33",
	}

	for _, raw := range testRefs {
		t.Run(raw, func(t *testing.T) {
			ref, err := ParsePinRef(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, ref.String())
		})
	}
}

func TestParsePinRef_Errors(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no separator", raw: "node"},
		{name: "empty owner", raw: ":pin"},
		{name: "empty pin", raw: "node:"},
		{name: "too many segments", raw: "a:b:c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePinRef(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestPinRef_Zero(t *testing.T) {
	assert.True(t, PinRef{}.IsZero())
	assert.Equal(t, "", PinRef{}.String())
	assert.False(t, NewPinRef("a", "b").IsZero())
}
