package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate_HeaderTwoFirstPage(t *testing.T) {
	// ten file rows, header on row 2
	rng := Bounds{MinCol: 1, MinRow: 1, MaxCol: 3, MaxRow: 10}

	w, err := Paginate(rng, Request{Header: 2, PageToken: 0, PageSize: intPtr(5)})
	require.NoError(t, err)

	assert.Equal(t, 2, w.HeaderRow)
	assert.Equal(t, 3, w.MinRow)
	assert.Equal(t, 7, w.MaxRow)
	assert.Equal(t, 5, w.Rows())
	assert.True(t, w.HasMore)
	assert.Equal(t, 10, w.Total)
}

func TestPaginate_Pages(t *testing.T) {
	rng := Bounds{MinCol: 1, MinRow: 1, MaxCol: 2, MaxRow: 11}

	tests := []struct {
		token   int
		minRow  int
		maxRow  int
		hasMore bool
	}{
		{0, 2, 5, true},
		{1, 6, 9, true},
		{2, 10, 11, false},
	}

	for _, tt := range tests {
		w, err := Paginate(rng, Request{Header: 1, PageToken: tt.token, PageSize: intPtr(4)})
		require.NoError(t, err)
		assert.Equal(t, tt.minRow, w.MinRow, "token %d", tt.token)
		assert.Equal(t, tt.maxRow, w.MaxRow, "token %d", tt.token)
		assert.Equal(t, tt.hasMore, w.HasMore, "token %d", tt.token)
	}

	_, err := Paginate(rng, Request{Header: 1, PageToken: 3, PageSize: intPtr(4)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "page token out of range")
}

func TestPaginate_CoverageMatchesFullRead(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7, 50} {
		rng := Bounds{MinCol: 1, MinRow: 4, MaxCol: 1, MaxRow: 40}
		full, err := Paginate(rng, Request{Header: 2})
		require.NoError(t, err)

		var rows []int
		for token := 0; ; token++ {
			w, err := Paginate(rng, Request{Header: 2, PageToken: token, PageSize: intPtr(size)})
			require.NoError(t, err)
			for r := w.MinRow; r <= w.MaxRow; r++ {
				rows = append(rows, r)
			}
			if !w.HasMore {
				break
			}
		}

		var expected []int
		for r := full.MinRow; r <= full.MaxRow; r++ {
			expected = append(expected, r)
		}
		assert.Equal(t, expected, rows, "page size %d", size)
	}
}

func TestPaginate_InvalidConfig(t *testing.T) {
	rng := Bounds{MinCol: 1, MinRow: 1, MaxCol: 1, MaxRow: 10}

	tests := []struct {
		name string
		req  Request
	}{
		{"header zero", Request{Header: 0}},
		{"negative token", Request{Header: 1, PageToken: -1}},
		{"zero page size", Request{Header: 1, PageSize: intPtr(0)}},
		{"header beyond range", Request{Header: 11}},
		{"header on last row", Request{Header: 10}},
		{"token without size", Request{Header: 1, PageToken: 1}},
		{"token past last page", Request{Header: 1, PageToken: 5, PageSize: intPtr(2)}},
		{"overflowing token", Request{Header: 1, PageToken: 1 << 62, PageSize: intPtr(2)}},
		{"overflowing token and size", Request{Header: 1, PageToken: math.MaxInt, PageSize: intPtr(math.MaxInt)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Paginate(rng, tt.req)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, w)
		})
	}
}

func TestPaginate_HugePageSize(t *testing.T) {
	rng := Bounds{MinCol: 1, MinRow: 1, MaxCol: 3, MaxRow: 10}

	w, err := Paginate(rng, Request{Header: 1, PageSize: intPtr(math.MaxInt)})
	require.NoError(t, err)
	assert.Equal(t, 2, w.MinRow)
	assert.Equal(t, 10, w.MaxRow)
	assert.False(t, w.HasMore)
}

func TestResolve(t *testing.T) {
	sheet := Bounds{MinCol: 1, MinRow: 1, MaxCol: 4, MaxRow: 30}
	raw, err := ParseRange("B5:C20")
	require.NoError(t, err)

	w, err := Resolve(Request{Range: raw, Header: 1, PageSize: intPtr(10)}, sheet)
	require.NoError(t, err)

	assert.Equal(t, Bounds{MinCol: 2, MinRow: 5, MaxCol: 3, MaxRow: 20}, w.Range)
	assert.Equal(t, 5, w.HeaderRow)
	assert.Equal(t, 6, w.MinRow)
	assert.Equal(t, 15, w.MaxRow)
	assert.Equal(t, 16, w.Total)
	assert.LessOrEqual(t, w.MinRow, w.MaxRow)

	_, err = Resolve(Request{Header: 0}, sheet)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
