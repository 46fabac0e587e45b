package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// OrderField is one ORDER BY term.
type OrderField struct {
	Field string
	Desc  bool
}

// Page selects a slice of the result set; Number starts at 1.
type Page struct {
	Number  uint64
	PerPage uint64
}

// Offset returns the number of rows skipped before the page.
func (p Page) Offset() uint64 {
	return (p.Number - 1) * p.PerPage
}

// Params is the per-request parameter bag.
type Params struct {
	Filter  map[string]any
	OrderBy []OrderField
	Limit   *uint64
	Page    *Page
}

// ParamConfig carries paging defaults.
type ParamConfig struct {
	DefaultPerPage uint64
	MaxPerPage     uint64 // 0 means no cap
}

// DefaultPerPage is used when ParamConfig does not set one.
const DefaultPerPage = 20

// ParseParams reads filter, order_by, limit, page and per_page from a query string.
func ParseParams(v url.Values, cfg ParamConfig) (Params, error) {
	var p Params

	if raw := strings.TrimSpace(v.Get("filter")); raw != "" {
		obj, err := DecodeObjectString(raw)
		if err != nil {
			return p, &InvalidParamError{Param: "filter", Value: raw, Reason: "expected a JSON object"}
		}
		p.Filter = obj
	}

	p.OrderBy = ParseOrderBy(v.Get("order_by"))

	if raw := v.Get("limit"); raw != "" {
		n, err := parseUint("limit", raw, false)
		if err != nil {
			return p, err
		}
		p.Limit = &n
	}

	if raw := v.Get("page"); raw != "" {
		n, err := parseUint("page", raw, true)
		if err != nil {
			return p, err
		}
		per := cfg.DefaultPerPage
		if per == 0 {
			per = DefaultPerPage
		}
		if rawPer := v.Get("per_page"); rawPer != "" {
			if per, err = parseUint("per_page", rawPer, true); err != nil {
				return p, err
			}
		}
		if cfg.MaxPerPage > 0 && per > cfg.MaxPerPage {
			per = cfg.MaxPerPage
		}
		// OFFSET is a signed bigint
		if n-1 > math.MaxInt64/per {
			return p, &InvalidParamError{Param: "page", Value: raw, Reason: "offset out of range"}
		}
		p.Page = &Page{Number: n, PerPage: per}
	}
	return p, nil
}

// ParseOrderBy splits "name,-created_at" into order terms; empty items are skipped.
func ParseOrderBy(raw string) []OrderField {
	var out []OrderField
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		desc := strings.HasPrefix(item, "-")
		item = strings.TrimSpace(strings.TrimPrefix(item, "-"))
		if item == "" {
			continue
		}
		out = append(out, OrderField{Field: item, Desc: desc})
	}
	return out
}

func parseUint(name, raw string, positive bool) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
	if err != nil {
		return 0, &InvalidParamError{Param: name, Value: raw, Reason: fmt.Sprintf("expected an integer between 0 and %d", int64(math.MaxInt64))}
	}
	if positive && n == 0 {
		return 0, &InvalidParamError{Param: name, Value: raw, Reason: "must be at least 1"}
	}
	return n, nil
}
