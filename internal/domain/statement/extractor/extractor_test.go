package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadingOrder(t *testing.T) {
	tests := []struct {
		name      string
		fragments []TextFragment
		want      string
	}{
		{
			name:      "empty page",
			fragments: nil,
			want:      "",
		},
		{
			name: "single fragment",
			fragments: []TextFragment{
				{Text: "HELLO", X: 10, Y: 700, LineBreak: true},
			},
			want: "HELLO",
		},
		{
			name: "top to bottom ordering",
			fragments: []TextFragment{
				{Text: "bottom", X: 10, Y: 100, LineBreak: true},
				{Text: "top", X: 10, Y: 700, LineBreak: true},
				{Text: "middle", X: 10, Y: 400, LineBreak: true},
			},
			want: "top\nmiddle\nbottom",
		},
		{
			name: "same line ordered left to right",
			fragments: []TextFragment{
				{Text: "45.00", X: 400, Y: 500, LineBreak: true},
				{Text: "03/14", X: 10, Y: 500},
				{Text: "COFFEE", X: 100, Y: 500},
			},
			want: "03/14 COFFEE 45.00",
		},
		{
			name: "tolerance band keeps slightly offset fragments on one line",
			fragments: []TextFragment{
				{Text: "right", X: 200, Y: 498, LineBreak: true},
				{Text: "left", X: 10, Y: 502},
			},
			want: "left right",
		},
		{
			name: "offset beyond tolerance starts a new line",
			fragments: []TextFragment{
				{Text: "below", X: 10, Y: 490, LineBreak: true},
				{Text: "above", X: 200, Y: 502, LineBreak: true},
			},
			want: "above\nbelow",
		},
		{
			name: "space join without line break flag",
			fragments: []TextFragment{
				{Text: "DEPOSIT", X: 10, Y: 300},
				{Text: "PAYROLL", X: 120, Y: 300},
				{Text: "1,000.00", X: 300, Y: 300, LineBreak: true},
			},
			want: "DEPOSIT PAYROLL 1,000.00",
		},
		{
			name: "two rows with mixed breaks",
			fragments: []TextFragment{
				{Text: "03/15", X: 10, Y: 280},
				{Text: "GROCERY", X: 100, Y: 280, LineBreak: true},
				{Text: "03/14", X: 10, Y: 300},
				{Text: "COFFEE", X: 100, Y: 300, LineBreak: true},
			},
			want: "03/14 COFFEE\n03/15 GROCERY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadingOrder(tt.fragments))
		})
	}
}

func TestReadingOrderDoesNotMutateInput(t *testing.T) {
	fragments := []TextFragment{
		{Text: "b", X: 10, Y: 100, LineBreak: true},
		{Text: "a", X: 10, Y: 700, LineBreak: true},
	}

	_ = ReadingOrder(fragments)

	assert.Equal(t, "b", fragments[0].Text)
	assert.Equal(t, "a", fragments[1].Text)
}
