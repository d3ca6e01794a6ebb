package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{
			name:    "string",
			input:   "hello",
			wantStr: `"hello"`,
		},
		{
			name:    "int",
			input:   42,
			wantStr: "42",
		},
		{
			name:    "int64",
			input:   int64(123456789),
			wantStr: "123456789",
		},
		{
			name:    "float64",
			input:   3.14,
			wantStr: "3.14",
		},
		{
			name:    "bool true",
			input:   true,
			wantStr: "True",
		},
		{
			name:    "bool false",
			input:   false,
			wantStr: "False",
		},
		{
			name:    "nil",
			input:   nil,
			wantStr: "None",
		},
		{
			name:    "string slice",
			input:   []string{"a", "b", "c"},
			wantStr: `["a", "b", "c"]`,
		},
		{
			name:    "empty string slice",
			input:   []string{},
			wantStr: "[]",
		},
		{
			name:    "any slice",
			input:   []any{"x", 1, true},
			wantStr: `["x", 1, True]`,
		},
		{
			name:    "map",
			input:   map[string]any{"key": "value"},
			wantStr: `{"key": "value"}`,
		},
		{
			name:    "unsupported type",
			input:   struct{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.wantStr, got.String(), "GoToStarlark()")
		})
	}
}

func TestToGo(t *testing.T) {
	tests := []struct {
		name    string
		input   starlark.Value
		want    any
		wantErr bool
	}{
		{
			name:  "string",
			input: starlark.String("hello"),
			want:  "hello",
		},
		{
			name:  "int",
			input: starlark.MakeInt(42),
			want:  int64(42),
		},
		{
			name:  "float",
			input: starlark.Float(3.14),
			want:  3.14,
		},
		{
			name:  "bool true",
			input: starlark.Bool(true),
			want:  true,
		},
		{
			name:  "bool false",
			input: starlark.Bool(false),
			want:  false,
		},
		{
			name:  "none",
			input: starlark.None,
			want:  nil,
		},
		{
			name:  "tuple",
			input: starlark.Tuple{starlark.String("a"), starlark.MakeInt(1)},
			want:  []any{"a", int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.want, got, "ToGo()")
		})
	}
}

func TestToGo_List(t *testing.T) {
	list := starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.String("x")})

	got, err := ToGo(list)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "x"}, got)
}

func TestToGo_Dict(t *testing.T) {
	dict := starlark.NewDict(2)
	require.NoError(t, dict.SetKey(starlark.String("a"), starlark.MakeInt(1)))
	require.NoError(t, dict.SetKey(starlark.String("b"), starlark.Bool(true)))

	got, err := ToGo(dict)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1), "b": true}, got)
}

func TestRowToDict(t *testing.T) {
	dict, err := RowToDict(map[string]any{
		"amount":   float64(120.5),
		"currency": "USD",
		"flagged":  false,
		"agent":    nil,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, dict.Len())

	v, found, err := dict.Get(starlark.String("currency"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, starlark.String("USD"), v)

	v, found, err = dict.Get(starlark.String("agent"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, starlark.None, v)

	// The dict is frozen, so expressions cannot mutate shared rows.
	err = dict.SetKey(starlark.String("amount"), starlark.Float(0))
	assert.Error(t, err)
}

func TestRowToDict_UnsupportedValue(t *testing.T) {
	_, err := RowToDict(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "bad"`)
}
