package feed

import (
	"math"
	"net/url"
	"strconv"
)

// Page is one page of a listing, shaped like a length-aware paginator.
type Page[T any] struct {
	CurrentPage int     `json:"current_page"`
	Data        []T     `json:"data"`
	From        *int    `json:"from"`
	To          *int    `json:"to"`
	LastPage    int     `json:"last_page"`
	PerPage     int     `json:"per_page"`
	Total       int     `json:"total"`
	Path        string  `json:"path"`
	NextPageURL *string `json:"next_page_url"`
	PrevPageURL *string `json:"prev_page_url"`
}

// MaxPage bounds requested page numbers so offsets stay far from overflow
// for any page size the API uses.
const MaxPage = math.MaxInt32

// NormalizePage clamps page numbers into [1, MaxPage].
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

func Offset(page, perPage int) int {
	return (NormalizePage(page) - 1) * perPage
}

func NewPage[T any](items []T, page, perPage, total int) Page[T] {
	page = NormalizePage(page)
	if items == nil {
		items = []T{}
	}
	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	p := Page[T]{
		CurrentPage: page,
		Data:        items,
		LastPage:    last,
		PerPage:     perPage,
		Total:       total,
	}
	if len(items) > 0 {
		from := Offset(page, perPage) + 1
		to := from + len(items) - 1
		p.From, p.To = &from, &to
	}
	return p
}

// Link fills in Path and the neighbour page URLs for a listing served at
// path.
func (p *Page[T]) Link(path string) {
	p.Path = path
	p.NextPageURL, p.PrevPageURL = nil, nil
	if p.CurrentPage < p.LastPage {
		u := pageURL(path, p.CurrentPage+1)
		p.NextPageURL = &u
	}
	if p.CurrentPage > 1 {
		u := pageURL(path, p.CurrentPage-1)
		p.PrevPageURL = &u
	}
}

func pageURL(path string, page int) string {
	return path + "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
}
