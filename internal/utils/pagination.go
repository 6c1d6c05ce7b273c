package utils

import (
	"math"
	"net/http"
	"strconv"

	"train-station/internal/apperr"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// maxPage keeps (page-1)*MaxPageSize within int.
	maxPage = math.MaxInt / MaxPageSize
)

// Page is a page-number pagination request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// ParsePage reads ?page and ?page_size. Sizes above MaxPageSize are capped;
// a page number whose offset would overflow is rejected.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Number: 1, Size: DefaultPageSize}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, apperr.Field("page", apperr.ErrInvalid, "page must be a positive integer")
		}
		if n > maxPage {
			return p, apperr.Field("page", apperr.ErrInvalid, "page must be at most %d", maxPage)
		}
		p.Number = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, apperr.Field("page_size", apperr.ErrInvalid, "page_size must be a positive integer")
		}
		p.Size = min(n, MaxPageSize)
	}
	return p, nil
}

// PageResponse is the list envelope.
type PageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPageResponse builds the envelope with absolute next/previous links. A
// page past the end (other than the first) is reported as not found.
func NewPageResponse[T any](r *http.Request, p Page, count int, results []T) (PageResponse[T], error) {
	if p.Number > 1 && p.Offset() >= count {
		return PageResponse[T]{}, apperr.ErrNotFound
	}
	if results == nil {
		results = []T{}
	}
	resp := PageResponse[T]{Count: count, Results: results}
	if p.Offset()+p.Size < count {
		next := pageURL(r, p.Number+1)
		resp.Next = &next
	}
	if p.Number > 1 {
		prev := pageURL(r, p.Number-1)
		resp.Previous = &prev
	}
	return resp, nil
}

func pageURL(r *http.Request, number int) string {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := u.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WritePage renders items through view and writes the list envelope. Only
// pagination errors are returned; nothing has been written when one is.
func WritePage[T any, V any](w http.ResponseWriter, r *http.Request, p Page, count int, items []T, view func(*T) V) error {
	results := make([]V, 0, len(items))
	for i := range items {
		results = append(results, view(&items[i]))
	}
	resp, err := NewPageResponse(r, p, count, results)
	if err != nil {
		return err
	}
	_ = WriteJSON(w, http.StatusOK, resp)
	return nil
}
