package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `validate:"required,max=4"`
	Level string `validate:"omitempty,oneof=info warn"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		name string
		in   sample
		want string
	}{
		{name: "ok", in: sample{Name: "kim"}},
		{name: "missing", in: sample{}, want: "name is required"},
		{name: "too long", in: sample{Name: "kimberly"}, want: "name must be at most 4 characters"},
		{name: "two failures", in: sample{Level: "loud"}, want: "name is required; level must be one of: info warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.want)
		})
	}
}

func TestSlice(t *testing.T) {
	assert.NoError(t, Slice([]sample{{Name: "a"}, {Name: "b"}}))
	assert.EqualError(t, Slice([]sample{{Name: "a"}, {}}), "item 1: name is required")
}
