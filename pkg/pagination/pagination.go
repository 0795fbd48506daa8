package pagination

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the limit and offset query parameters. A missing or
// non-integer limit becomes DefaultLimit; the result is clamped to
// [1, MaxLimit]. A missing or non-integer offset becomes 0 and negative
// offsets are raised to 0.
func FromContext(c echo.Context) Params {
	return New(
		intParam(c.QueryParam("limit"), DefaultLimit),
		intParam(c.QueryParam("offset"), 0),
	)
}

// New clamps limit and offset into their valid ranges.
func New(limit, offset int) Params {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func intParam(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

// Page describes one returned page. There is no total count: HasMore is set
// whenever the page came back full, so a final page of exactly Limit items
// still reports HasMore and the next request returns an empty page.
type Page struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset int  `json:"next_offset"`
	HasMore    bool `json:"has_more"`
}

// PageOf builds the page metadata for n returned items.
func (p Params) PageOf(n int) Page {
	return Page{
		Limit:      p.Limit,
		Offset:     p.Offset,
		NextOffset: p.Offset + n,
		HasMore:    n == p.Limit,
	}
}
