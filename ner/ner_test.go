package ner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "people and places",
			text: "Mayor John Smith addressed the crowd in Baltimore yesterday.",
			want: []string{"Mayor John Smith", "Baltimore"},
		},
		{
			name: "leading stop word alone is dropped",
			text: "The meeting was held downtown.",
			want: nil,
		},
		{
			name: "duplicate mentions collapse",
			text: "General Lee arrived. General Lee departed at noon.",
			want: []string{"General Lee"},
		},
		{
			name: "lone single-letter stop word dropped",
			text: "A market report follows.",
			want: nil,
		},
		{
			name: "multi-word organization run is kept whole",
			text: "Mayor Smith met with Baltimore Sun Publishing Company editors.",
			want: []string{"Mayor Smith", "Baltimore Sun Publishing Company"},
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDeduplicatesPreservingFirstOrder(t *testing.T) {
	got := Extract("Chicago is cold. Chicago is windy. New York is far from Chicago.")
	assert.Equal(t, []string{"Chicago", "New York"}, got)
}
