// Package store is the generic request/response client every component uses
// to reach the relational store. Calls name a table and carry filters; the
// caller is responsible for scoping tenant tables by organization_id.
package store

import (
	"context"
	"errors"
)

var (
	// ErrUnknownTable is returned for a table outside the allow-list.
	ErrUnknownTable = errors.New("unknown table")
	// ErrInvalidColumn is returned when a filter or order column is not a
	// plain snake_case identifier.
	ErrInvalidColumn = errors.New("invalid column")
	// ErrInvalidOp is returned for an unsupported filter operator.
	ErrInvalidOp = errors.New("invalid filter operator")
	// ErrUnscoped is returned when Update or Delete is called without filters.
	ErrUnscoped = errors.New("update and delete require at least one filter")
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpIn      Op = "in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
)

// Filter restricts a call to rows where Column compares to Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows where column equals v.
func Eq(column string, v any) Filter { return Filter{Column: column, Op: OpEq, Value: v} }

// Neq matches rows where column differs from v.
func Neq(column string, v any) Filter { return Filter{Column: column, Op: OpNeq, Value: v} }

// In matches rows where column is one of vs. vs must be a slice.
func In(column string, vs any) Filter { return Filter{Column: column, Op: OpIn, Value: vs} }

// IsNull matches rows where column is NULL.
func IsNull(column string) Filter { return Filter{Column: column, Op: OpIsNull} }

// NotNull matches rows where column is not NULL.
func NotNull(column string) Filter { return Filter{Column: column, Op: OpNotNull} }

// Order sorts a Select by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a Select. A zero Limit means no limit.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Client is the data-store contract. rows and dest are pointers to model
// values or slices of them.
type Client interface {
	Select(ctx context.Context, table string, dest any, q Query) error
	Insert(ctx context.Context, table string, rows any) error
	Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) error
	Count(ctx context.Context, table string, filters ...Filter) (int64, error)
}
