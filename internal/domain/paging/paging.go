// Package paging holds the page arithmetic shared by list endpoints.
package paging

import "github.com/go-faster/errors"

// DefaultSize is the number of rows per page.
const DefaultSize = 10

// ErrOutOfRange is returned when the requested page lies past the last page.
var ErrOutOfRange = errors.New("page out of range")

// Page selects a window of rows. The zero value selects every row.
type Page struct {
	Number int
	Size   int
}

// All reports whether the page selects every row.
func (p Page) All() bool {
	return p.Number <= 0
}

// Limit returns the SQL LIMIT for the page, or -1 when every row is selected.
func (p Page) Limit() int {
	if p.All() {
		return -1
	}
	if p.Size <= 0 {
		return DefaultSize
	}
	return p.Size
}

// Offset returns the SQL OFFSET for the page.
func (p Page) Offset() int {
	if p.All() {
		return 0
	}
	return (p.Number - 1) * p.Limit()
}

// Check validates the page against the total row count. The first page of an
// empty table is valid and yields no rows.
func (p Page) Check(total int) error {
	if p.All() || p.Number == 1 {
		return nil
	}
	size := p.Limit()
	pages := (total + size - 1) / size
	if p.Number > pages {
		return ErrOutOfRange
	}
	return nil
}
