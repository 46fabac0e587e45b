package model

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)

// extractPlaceholders returns the distinct {column} names used in expr.
func extractPlaceholders(expr string) []string {
	if expr == "" {
		return nil
	}
	matches := placeholderRe.FindAllStringSubmatch(expr, -1)
	set := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		p := strings.TrimSpace(m[1])
		if p == "" {
			continue
		}
		if _, ok := set[p]; ok {
			continue
		}
		set[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// BindPlaceholders turns "main.company_id = {company_id}" into
// "main.company_id = ?" with the entity's company_id as argument.
// Values are always bound, never spliced into the SQL text.
func BindPlaceholders(expr string, e *Entity) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
		last int
	)
	for _, idx := range placeholderRe.FindAllStringSubmatchIndex(expr, -1) {
		start, end := idx[0], idx[1]
		name := strings.TrimSpace(expr[idx[2]:idx[3]])
		v, ok := e.Get(name)
		if !ok {
			return "", nil, fmt.Errorf("placeholder {%s}: no such value on %s", name, e.Model.Name)
		}
		b.WriteString(expr[last:start])
		b.WriteString("?")
		args = append(args, v)
		last = end
	}
	b.WriteString(expr[last:])
	return b.String(), args, nil
}
