package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, `null`},
		{"string without html escaping", String("<a & b>"), `"<a & b>"`},
		{"nfc", String("é"), `"é"`},
		{"int", Int(-12), `-12`},
		{"float", Float(1.5), `1.5`},
		{"bool", Bool(true), `true`},
		{"time", NewTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)), `"2024-01-02T03:04:05Z"`},
		{"ref", Ref("http://x/a"), `{"@id":"http://x/a"}`},
		{"list sorted", List{String("b"), String("a")}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(List{List{Int(1)}})
	assert.Error(t, err)
}

func TestAttributes_MarshalJSON(t *testing.T) {
	a := Attributes{
		"http://z": Int(1),
		"http://a": List{Ref("http://r2"), Ref("http://r1")},
	}
	got, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"http://a":[{"@id":"http://r1"},{"@id":"http://r2"}],"http://z":1}`, string(got))
}
