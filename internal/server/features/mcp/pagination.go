package mcp

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/weppcloud/queryengine/pkg/core"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Page is a resolved pagination request.
type Page struct {
	Size   int
	Number int
	Offset int
}

// PageMeta is reported as meta.page.
type PageMeta struct {
	Size       int `json:"size"`
	Number     int `json:"number"`
	Offset     int `json:"offset"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// queryInt reads the first present key. The JSON:API bracket key is listed
// first so it wins over flat aliases.
func queryInt(q url.Values, keys ...string) (int, bool, error) {
	for _, key := range keys {
		if !q.Has(key) {
			continue
		}
		raw := strings.TrimSpace(q.Get(key))
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "%s must be an integer, got %q", key, raw)
		}
		return n, true, nil
	}
	return 0, false, nil
}

// ParsePage reads page[size]/page_size, page[number]/page_number and
// page[offset]. sizeAliases are extra flat keys accepted for the size.
func ParsePage(q url.Values, sizeAliases ...string) (Page, error) {
	p := Page{Size: defaultPageSize, Number: 1}

	size, ok, err := queryInt(q, append([]string{"page[size]", "page_size"}, sizeAliases...)...)
	if err != nil {
		return p, err
	}
	if ok {
		if size < 1 || size > maxPageSize {
			return p, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "page size must be between 1 and %d", maxPageSize)
		}
		p.Size = size
	}

	offset, hasOffset, err := queryInt(q, "page[offset]")
	if err != nil {
		return p, err
	}
	if hasOffset {
		if offset < 0 {
			return p, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "page offset must not be negative")
		}
		if offset > math.MaxInt-p.Size {
			return p, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "page offset %d is out of range", offset)
		}
		p.Offset = offset
		p.Number = offset/p.Size + 1
		return p, nil
	}

	number, ok, err := queryInt(q, "page[number]", "page_number")
	if err != nil {
		return p, err
	}
	if ok {
		if number < 1 {
			return p, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "page number must be at least 1")
		}
		// offset+size must stay representable
		if number-1 > (math.MaxInt-p.Size)/p.Size {
			return p, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "page number %d is out of range", number)
		}
		p.Number = number
	}
	p.Offset = (p.Number - 1) * p.Size
	return p, nil
}

// FieldLimit reads limit[fields]/limit_fields; zero means unlimited.
func FieldLimit(q url.Values) (int, error) {
	n, ok, err := queryInt(q, "limit[fields]", "limit_fields")
	if err != nil || !ok {
		return 0, err
	}
	if n < 1 {
		return 0, core.NewError(core.KindInvalidRequest, core.ErrInvalid, "field limit must be at least 1")
	}
	return n, nil
}

// Paginate returns the page window of items. Out of range pages are empty.
func Paginate[T any](items []T, p Page) ([]T, PageMeta) {
	total := len(items)
	meta := PageMeta{
		Size:       p.Size,
		Number:     p.Number,
		Offset:     p.Offset,
		TotalItems: total,
		TotalPages: (total + p.Size - 1) / p.Size,
	}
	if p.Offset >= total {
		return []T{}, meta
	}
	end := p.Offset + min(p.Size, total-p.Offset)
	return items[p.Offset:end], meta
}

// pageLinks builds self/prev/next links for a collection at path.
func pageLinks(path string, q url.Values, meta PageMeta) *Links {
	link := func(offset int) string {
		v := url.Values{}
		for k, vals := range q {
			switch k {
			case "page[size]", "page_size", "page[number]", "page_number", "page[offset]", "limit_datasets":
				continue
			}
			v[k] = vals
		}
		v.Set("page[size]", strconv.Itoa(meta.Size))
		v.Set("page[offset]", strconv.Itoa(offset))
		return path + "?" + v.Encode()
	}

	links := &Links{Self: link(meta.Offset)}
	if meta.Offset > 0 {
		links.Prev = link(max(meta.Offset-meta.Size, 0))
	}
	if meta.Offset < meta.TotalItems-meta.Size {
		links.Next = link(meta.Offset + meta.Size)
	}
	return links
}
