package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veris/internal/canonical"
)

func TestMarshal_SortsKeys(t *testing.T) {
	b, err := canonical.Marshal(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(b))
}

func TestMarshal_NestedStructures(t *testing.T) {
	b, err := canonical.Marshal(map[string]any{
		"b": "x",
		"a": []any{1, 2, map[string]any{"d": true, "c": nil}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2,{"c":null,"d":true}],"b":"x"}`, string(b))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	b, err := canonical.Marshal(map[string]any{"q": "a<b&c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b&c>d"}`, string(b))
}

func TestMarshal_StructMatchesMapForm(t *testing.T) {
	type payload struct {
		Amount int    `json:"amount"`
		Org    string `json:"org"`
	}

	fromStruct, err := canonical.Marshal(payload{Amount: 10, Org: "org-1"})
	require.NoError(t, err)
	fromMap, err := canonical.Marshal(map[string]any{"org": "org-1", "amount": 10})
	require.NoError(t, err)

	assert.Equal(t, fromMap, fromStruct)
}

func TestHash_KeyOrderIndependent(t *testing.T) {
	x := map[string]any{"a": 1, "b": map[string]any{"c": []any{1, 2}, "d": "x"}}
	y := map[string]any{"b": map[string]any{"d": "x", "c": []any{1, 2}}, "a": 1}

	hx, err := canonical.Hash(x)
	require.NoError(t, err)
	hy, err := canonical.Hash(y)
	require.NoError(t, err)

	assert.Equal(t, hx, hy)
}

// Digests must stay stable across releases: persisted audit rows reference
// them, so a change here is a breaking change for verification tooling.
func TestHash_StableVectors(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{
			name:  "flat object",
			value: map[string]any{"b": 2, "a": 1},
			want:  "43258cff783fe7036d8a43033f830adfc60ec037382473548ac742b888292777",
		},
		{
			name:  "nested object",
			value: map[string]any{"a": []any{1, 2, map[string]any{"c": nil, "d": true}}, "b": "x"},
			want:  "00c787907dba6f03f605439c63a9dc73116658fa329c46b8bd0abe0e91dc89ca",
		},
		{
			name:  "empty array",
			value: []any{},
			want:  "4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945",
		},
		{
			name:  "bare string",
			value: "hello",
			want:  "5aa762ae383fbb727af3c7a36d4940a5b8c40a989452d2304fc958ff3f354e7a",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := canonical.Hash(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMarshal_RejectsNonJSONValues(t *testing.T) {
	_, err := canonical.Marshal(make(chan int))
	assert.Error(t, err)

	_, err = canonical.Hash(func() {})
	assert.Error(t, err)
}
