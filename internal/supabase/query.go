package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Direction is a sort direction for Order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Query builds a PostgREST read against one table.
type Query struct {
	client  *Client
	table   string
	columns string
	filters []filter
	orders  []string
}

type filter struct {
	column string
	value  string
}

// From starts a query against table. Columns default to "*".
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table, columns: "*"}
}

// Select sets the column list, including embedded resources such as "*, mystery_boxes(title)".
func (q *Query) Select(columns string) *Query {
	compact := strings.Join(strings.Fields(columns), "")
	if compact == "" {
		compact = "*"
	}
	q.columns = compact
	return q
}

// Eq adds an equality filter (column=eq.value).
func (q *Query) Eq(column, value string) *Query {
	q.filters = append(q.filters, filter{column: column, value: value})
	return q
}

// Order appends a sort key.
func (q *Query) Order(column string, dir Direction) *Query {
	suffix := ".asc"
	if dir == Descending {
		suffix = ".desc"
	}
	q.orders = append(q.orders, column+suffix)
	return q
}

// Values returns the encoded query parameters.
func (q *Query) Values() url.Values {
	values := url.Values{}
	values.Set("select", q.columns)
	for _, f := range q.filters {
		values.Add(f.column, "eq."+f.value)
	}
	if len(q.orders) > 0 {
		values.Set("order", strings.Join(q.orders, ","))
	}
	return values
}

// Execute runs the query and decodes the JSON array into dest.
func (q *Query) Execute(ctx context.Context, dest any) error {
	if q == nil || q.client == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(q.table) == "" {
		return errors.New("supabase: table name is required")
	}
	return q.client.do(ctx, request{
		method: http.MethodGet,
		path:   restPrefix + "/" + url.PathEscape(q.table),
		query:  q.Values(),
	}, dest)
}

// Insert writes rows (a struct, map or slice of either) into table without reading them back.
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	if c == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(table) == "" {
		return errors.New("supabase: table name is required")
	}
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    restPrefix + "/" + url.PathEscape(table),
		body:    rows,
		headers: map[string]string{"Prefer": "return=minimal"},
	}, nil)
}
