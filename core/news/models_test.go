package news

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hari Kartini 2024!", "hari-kartini-2024"},
		{"  --Pentas   Seni--  ", "pentas-seni"},
		{"Libur/Semester_Ganjil", "libur-semester-ganjil"},
		{"!!!", "news"},
		{"", "news"},
		{strings.Repeat("ab ", 40), strings.TrimRight(strings.Repeat("ab-", 27)[:80], "-")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), slugMaxLen)
		})
	}
}
