package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE conditions, ordering and paging on top of a base
// SELECT statement. Conditions use ? placeholders which are rewritten to
// positional $n arguments when the final SQL is produced.
type Builder struct {
	base    string
	conds   []string
	args    []any
	orderBy string
	limit   int
	offset  int
}

// NewBuilder wraps a base SELECT statement (no WHERE clause).
func NewBuilder(base string) *Builder {
	return &Builder{base: base}
}

// Where appends an AND-ed condition. Placeholders in cond are written as ?.
func (b *Builder) Where(cond string, args ...any) *Builder {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
	return b
}

// OrderBy sets the ORDER BY expression. The caller is responsible for only
// passing whitelisted column expressions.
func (b *Builder) OrderBy(expr string) *Builder {
	b.orderBy = expr
	return b
}

// Paginate sets LIMIT/OFFSET. A non-positive limit disables paging.
func (b *Builder) Paginate(limit, offset int) *Builder {
	b.limit = limit
	if offset > 0 {
		b.offset = offset
	}
	return b
}

// SQL renders the final statement and its positional arguments.
func (b *Builder) SQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString(b.base)

	if len(b.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conds, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
		if b.offset > 0 {
			sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
		}
	}

	sql := sb.String()
	var out strings.Builder
	out.Grow(len(sql))
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			out.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		out.WriteRune(r)
	}

	return out.String(), b.args
}
