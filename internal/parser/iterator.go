package parser

import (
	"errors"
	"io"
	"iter"
)

// RowIterator streams the data rows of a sheet as field->value records.
// Fully blank rows are skipped. It is not restartable and closes itself
// once exhausted.
type RowIterator struct {
	sh     sheet
	src    rowSource
	fields []string
	record map[string]any
	err    error
	closed bool
}

func newRowIterator(sh sheet, src rowSource, fields []string) *RowIterator {
	return &RowIterator{sh: sh, src: src, fields: fields}
}

// Fields returns the header names in column order
func (it *RowIterator) Fields() []string {
	return it.fields
}

// Next advances to the next non-blank row
func (it *RowIterator) Next() bool {
	if it.closed || it.src == nil {
		it.Close()
		return false
	}

	for {
		row, err := it.src.next()
		if errors.Is(err, io.EOF) {
			it.Close()
			return false
		}
		if err != nil {
			it.err = err
			it.Close()
			return false
		}
		if blankRow(row) {
			continue
		}
		it.record = toRecord(it.fields, row)
		return true
	}
}

// Record returns the current row
func (it *RowIterator) Record() map[string]any {
	return it.record
}

// Err returns the error that stopped iteration, if any
func (it *RowIterator) Err() error {
	return it.err
}

// Close releases the underlying file; safe to call more than once
func (it *RowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	var errs []error
	if it.src != nil {
		errs = append(errs, it.src.close())
	}
	if it.sh != nil {
		errs = append(errs, it.sh.Close())
	}
	return errors.Join(errs...)
}

// All ranges over the remaining records. Breaking out of the loop closes
// the iterator; a read error is yielded once as the last element.
func (it *RowIterator) All() iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Record(), nil) {
				return
			}
		}
		if it.err != nil {
			yield(nil, it.err)
		}
	}
}
