package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

func TestCalculateTotalPages(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		perPage int
		want    int
	}{
		{"exact division", 20, 10, 2},
		{"remainder rounds up", 21, 10, 3},
		{"fewer than one page", 3, 10, 1},
		{"empty collection", 0, 10, 0},
		{"unbounded non-empty", 7, 0, 1},
		{"unbounded empty", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateTotalPages(tt.total, tt.perPage))
		})
	}
}

func TestPaginationParams_Window(t *testing.T) {
	t.Run("bounded", func(t *testing.T) {
		p := PaginationParams{CurrentPage: 3, PerPage: 10}
		assert.Equal(t, 20, p.CalculateOffset())
		assert.Equal(t, 10, p.Limit())
	})

	t.Run("unbounded ignores current page", func(t *testing.T) {
		p := PaginationParams{CurrentPage: 4}.Normalize()
		assert.Equal(t, 1, p.CurrentPage)
		assert.Equal(t, 0, p.CalculateOffset())
		assert.Equal(t, 0, p.Limit())
	})
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(PaginationParams{CurrentPage: 2, PerPage: 5}, 11)

	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, 11, meta.Total)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
}

func TestExtractPaginationParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/memories", nil)
		p, err := ExtractPaginationParams(r)
		require.NoError(t, err)
		assert.Equal(t, PaginationParams{CurrentPage: 1}, p)
	})

	t.Run("explicit values", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/memories?currentPage=2&perPage=25", nil)
		p, err := ExtractPaginationParams(r)
		require.NoError(t, err)
		assert.Equal(t, PaginationParams{CurrentPage: 2, PerPage: 25}, p)
	})

	t.Run("current page without per page collapses to 1", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/memories?currentPage=5", nil)
		p, err := ExtractPaginationParams(r)
		require.NoError(t, err)
		assert.Equal(t, 1, p.CurrentPage)
	})

	t.Run("deepest page keeps the offset in range", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/memories?currentPage=1000000&perPage=100", nil)
		p, err := ExtractPaginationParams(r)
		require.NoError(t, err)
		assert.Equal(t, MaxCurrentPage, p.CurrentPage)
		assert.Equal(t, 99_999_900, p.CalculateOffset())
	})

	for _, query := range []string{
		"currentPage=0", "currentPage=abc", "perPage=0", "perPage=101",
		"currentPage=1000001&perPage=100", "currentPage=9223372036854775807&perPage=100",
	} {
		t.Run("rejects "+query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/memories?"+query, nil)
			_, err := ExtractPaginationParams(r)
			assert.True(t, errors.IsValidation(err))
		})
	}
}
