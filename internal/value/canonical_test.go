package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"s": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"<a>&</a>"}`, string(b))
}

func TestMarshalCanonical_Scalars(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{false, "false"},
		{int64(42), "42"},
		{7, "7"},
		{3.0, "3"},
		{2.5, "2.5"},
		{"hi", `"hi"`},
		{[]any{1, "a"}, `[1,"a"]`},
	}
	for _, tc := range cases {
		b, err := MarshalCanonical(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + COMBINING ACUTE ACCENT normalizes to the precomposed form.
	b, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestMarshalCanonical_UnsupportedType(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}
