package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
}

const maxPageSize = 200

// Page is a limit/offset window. Zero or oversized limits fall back to defaults.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize(defaultLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// conditions accumulates AND-ed WHERE clauses. Each "?" in a clause is bound
// to the single value passed with it.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, value any) {
	c.args = append(c.args, value)
	c.clauses = append(c.clauses, strings.ReplaceAll(clause, "?", "$"+itoa(len(c.args))))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// paginate returns the LIMIT/OFFSET suffix and the full argument list.
func (c *conditions) paginate(page Page) (string, []any) {
	n := len(c.args)
	args := append(append([]any{}, c.args...), page.Limit, page.Offset)
	return " LIMIT $" + itoa(n+1) + " OFFSET $" + itoa(n+2), args
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(search))
	return "%" + escaped + "%"
}
