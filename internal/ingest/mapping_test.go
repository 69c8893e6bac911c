package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Entry
	}{
		{"empty", "{}", nil},
		{"double quoted", `{"gpt-4": 10, "gpt-3.5": 5}`, []Entry{{"gpt-4", "10"}, {"gpt-3.5", "5"}}},
		{"single quoted", `{'o3': '4'}`, []Entry{{"o3", "4"}}},
		{"bare tokens", `{canvas:1,search:2}`, []Entry{{"canvas", "1"}, {"search", "2"}}},
		{"trailing comma and spaces", " { 'a' : 1 , } ", []Entry{{"a", "1"}}},
		{"escaped quote", `{'it\'s': 1}`, []Entry{{"it's", "1"}}},
		{"duplicate keeps last value", `{'a': 1, 'b': 2, 'a': 3}`, []Entry{{"a", "3"}, {"b", "2"}}},
		{"spaces inside quoted key", `{'Data Analysis': 7}`, []Entry{{"Data Analysis", "7"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMapping(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMappingRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"{",
		"{'a': 1",
		"{'a' 1}",
		"{'a': }",
		"{'a': 1,,}",
		"{,}",
		"{'': 1}",
		"{'a': 1} extra",
		"{'a: 1}",
		"{'a': 1 'b': 2}",
		"[1, 2]",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMapping(in)
			assert.Error(t, err)
		})
	}
}
