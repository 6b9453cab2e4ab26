package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	cases := map[string]struct {
		number, size, def, limit int
		want                     Page
	}{
		"defaults":         {0, 0, 25, 100, Page{1, 25}},
		"negative number":  {-3, 10, 25, 100, Page{1, 10}},
		"capped size":      {2, 500, 25, 100, Page{2, 100}},
		"no limit":         {4, 700, 20, 0, Page{4, 700}},
		"zero default":     {1, 0, 0, 0, Page{1, 1}},
		"negative default": {1, -1, -5, 10, Page{1, 1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewPage(tc.number, tc.size, tc.def, tc.limit))
		})
	}
}

func TestPageArithmetic(t *testing.T) {
	p := Page{Number: 3, Size: 10}
	assert.Equal(t, 20, p.Offset())

	for total, want := range map[int64]int{0: 0, 1: 1, 10: 1, 11: 2, 95: 10} {
		assert.Equal(t, want, p.TotalPages(total), "total=%d", total)
	}
	for total, want := range map[int64]bool{20: false, 30: false, 31: true} {
		assert.Equal(t, want, p.HasNext(total), "total=%d", total)
	}
	assert.Zero(t, Page{Number: 1}.TotalPages(5))
}
