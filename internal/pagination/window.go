package pagination

import "fmt"

// Request is the pagination part of a preview call
type Request struct {
	Range     *RawRange
	Header    int  // 1-based offset of the header row inside the range
	PageToken int  // 0-based page number
	PageSize  *int // nil reads every remaining row
}

// Window is a fully resolved page
type Window struct {
	Range     Bounds `json:"data_range"`
	HeaderRow int    `json:"header_row"`
	MinRow    int    `json:"min_row"`
	MaxRow    int    `json:"max_row"`
	HasMore   bool   `json:"has_more"`
	Total     int    `json:"total"`
}

// Rows is the number of data rows in the page
func (w *Window) Rows() int {
	return w.MaxRow - w.MinRow + 1
}

// Validate checks everything that can be checked before any I/O
func (r Request) Validate() error {
	if r.Header < 1 {
		return fmt.Errorf("%w: header must be >= 1, got %d", ErrInvalidConfig, r.Header)
	}
	if r.PageToken < 0 {
		return fmt.Errorf("%w: page token must be >= 0, got %d", ErrInvalidConfig, r.PageToken)
	}
	if r.PageSize != nil && *r.PageSize < 1 {
		return fmt.Errorf("%w: page size must be >= 1, got %d", ErrInvalidConfig, *r.PageSize)
	}
	return nil
}

// HeaderRow returns the absolute header row for a resolved range
func HeaderRow(rng Bounds, header int) int {
	return rng.MinRow + header - 1
}

// Paginate computes the data window of one page over a resolved range.
// Page p covers rows headerRow+1+p*size through headerRow+(p+1)*size, so
// consecutive pages tile the data rows without overlap.
func Paginate(rng Bounds, req Request) (*Window, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	headerRow := HeaderRow(rng, req.Header)
	if headerRow > rng.MaxRow {
		return nil, fmt.Errorf("%w: header row %d is outside the data range", ErrInvalidConfig, headerRow)
	}

	w := &Window{
		Range:     rng,
		HeaderRow: headerRow,
		Total:     rng.Rows(),
	}

	if req.PageSize == nil {
		if req.PageToken > 0 {
			return nil, fmt.Errorf("%w: page token out of range", ErrInvalidConfig)
		}
		w.MinRow = headerRow + 1
		w.MaxRow = rng.MaxRow
	} else {
		size := *req.PageSize
		// checked before multiplying so huge tokens cannot overflow
		if req.PageToken > (rng.MaxRow-headerRow-1)/size {
			return nil, fmt.Errorf("%w: page token out of range", ErrInvalidConfig)
		}
		w.MinRow = headerRow + 1 + req.PageToken*size
		w.MaxRow = rng.MaxRow
		if size <= rng.MaxRow-w.MinRow {
			w.MaxRow = w.MinRow + size - 1
		}
	}

	if w.MinRow > w.MaxRow {
		return nil, fmt.Errorf("%w: page token out of range", ErrInvalidConfig)
	}

	w.HasMore = w.MaxRow < rng.MaxRow
	return w, nil
}

// Resolve runs ResolveRange and Paginate in one step
func Resolve(req Request, sheet Bounds) (*Window, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rng, err := ResolveRange(req.Range, sheet)
	if err != nil {
		return nil, err
	}
	return Paginate(rng, req)
}
