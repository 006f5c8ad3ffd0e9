package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "ref", KindRef.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.Equal(t, KindList, List{}.Kind())
	assert.Equal(t, KindNull, Null{}.Kind())
}

func TestNewList_Flattens(t *testing.T) {
	l := NewList(String("a"), NewList(Int(1), Int(2)), Bool(true))
	assert.Equal(t, List{String("a"), Int(1), Int(2), Bool(true)}, l)
	assert.NoError(t, Validate(l))
}

func TestCollapse(t *testing.T) {
	assert.Nil(t, Collapse(nil))
	assert.Equal(t, String("x"), Collapse([]Value{String("x")}))
	assert.Equal(t, List{Int(1), Int(2)}, Collapse([]Value{Int(1), Int(2)}))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("x"), String("x"), true},
		{"kind matters", String("1"), Int(1), false},
		{"ref vs string", Ref("http://a"), String("http://a"), false},
		{"list as set", List{Int(1), Int(2)}, List{Int(2), Int(1)}, true},
		{"singleton list", List{Int(1)}, Int(1), true},
		{"different lengths", List{Int(1), Int(2)}, Int(1), false},
		{"both nil", nil, nil, true},
		{"nil vs null", nil, Null{}, false},
		{"times", NewTime(time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)), NewTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestContains(t *testing.T) {
	l := List{String("a"), Ref("http://b")}
	assert.True(t, Contains(l, Ref("http://b")))
	assert.False(t, Contains(l, String("http://b")))
	assert.True(t, Contains(String("a"), String("a")))
	assert.False(t, Contains(nil, String("a")))
}

func TestList_Sorted(t *testing.T) {
	l := List{String("b"), Int(3), String("a")}
	sorted := l.Sorted()
	assert.Equal(t, List{Int(3), String("a"), String("b")}, sorted)
	assert.Equal(t, String("b"), l[0], "original untouched")
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))
	assert.Error(t, Validate(Float(math.NaN())))
	assert.Error(t, Validate(Float(math.Inf(1))))
	assert.Error(t, Validate(List{Int(1), List{Int(2)}}))
	assert.NoError(t, Validate(Float(1.5)))
}

func TestNewTime_Normalises(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	tm := NewTime(time.Date(2024, 5, 6, 7, 8, 9, 999, loc))
	assert.Equal(t, time.UTC, tm.Time().Location())
	assert.Equal(t, 6, tm.Time().Hour())
	assert.Equal(t, 0, tm.Time().Nanosecond())
}

func TestNative(t *testing.T) {
	assert.Nil(t, Native(Null{}))
	assert.Equal(t, int64(4), Native(Int(4)))
	assert.Equal(t, map[string]any{"@id": "http://x"}, Native(Ref("http://x")))
	assert.Equal(t, []any{"a", true}, Native(List{String("a"), Bool(true)}))
}

func TestAttributes(t *testing.T) {
	a := Attributes{"http://b": Int(1), "http://a": List{String("x"), String("y")}}
	assert.Equal(t, []string{"http://a", "http://b"}, a.SortedKeys())

	c := a.Clone()
	c["http://c"] = Null{}
	assert.Len(t, a, 2)

	b := Attributes{"http://a": List{String("y"), String("x")}, "http://b": Int(1)}
	assert.True(t, a.Equal(b))
	b["http://b"] = Int(2)
	assert.False(t, a.Equal(b))

	require.NotNil(t, Attributes(nil).Clone())
	assert.Equal(t, map[string]any{"http://b": int64(1), "http://a": []any{"x", "y"}}, a.Native())
}
