package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/d9705996/licenca/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var columnRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DefaultTables maps every table the application touches to a constructor of
// its model. Delete needs the model to build the statement.
func DefaultTables() map[string]func() any {
	return map[string]func() any{
		model.TableOrganizations: func() any { return &model.Organization{} },
		model.TableProfiles:      func() any { return &model.Profile{} },
		model.TableProcessTypes:  func() any { return &model.ProcessType{} },
		model.TableProcesses:     func() any { return &model.Process{} },
		model.TableUsers:         func() any { return &model.User{} },
	}
}

// GormClient implements Client on top of *gorm.DB.
type GormClient struct {
	db     *gorm.DB
	tables map[string]func() any
}

// NewGormClient returns a client restricted to tables. A nil map means
// DefaultTables.
func NewGormClient(db *gorm.DB, tables map[string]func() any) *GormClient {
	if tables == nil {
		tables = DefaultTables()
	}
	return &GormClient{db: db, tables: tables}
}

func (c *GormClient) scope(ctx context.Context, table string, filters []Filter) (*gorm.DB, error) {
	if _, ok := c.tables[table]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	tx := c.db.WithContext(ctx).Table(table)
	return applyFilters(tx, filters)
}

func applyFilters(tx *gorm.DB, filters []Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if !columnRe.MatchString(f.Column) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, f.Column)
		}
		switch f.Op {
		case OpEq, "":
			tx = tx.Where(f.Column+" = ?", f.Value)
		case OpNeq:
			tx = tx.Where(f.Column+" <> ?", f.Value)
		case OpIn:
			tx = tx.Where(f.Column+" IN ?", f.Value)
		case OpIsNull:
			tx = tx.Where(f.Column + " IS NULL")
		case OpNotNull:
			tx = tx.Where(f.Column + " IS NOT NULL")
		case OpLt:
			tx = tx.Where(f.Column+" < ?", f.Value)
		case OpLte:
			tx = tx.Where(f.Column+" <= ?", f.Value)
		case OpGt:
			tx = tx.Where(f.Column+" > ?", f.Value)
		case OpGte:
			tx = tx.Where(f.Column+" >= ?", f.Value)
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidOp, f.Op)
		}
	}
	return tx, nil
}

// Select loads the rows matching q into dest.
func (c *GormClient) Select(ctx context.Context, table string, dest any, q Query) error {
	tx, err := c.scope(ctx, table, q.Filters)
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	for _, o := range q.Order {
		if !columnRe.MatchString(o.Column) {
			return fmt.Errorf("select %s: %w: %q", table, ErrInvalidColumn, o.Column)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// Insert writes rows in a single statement. GORM wraps the statement in a
// transaction, so a batch is stored entirely or not at all.
func (c *GormClient) Insert(ctx context.Context, table string, rows any) error {
	tx, err := c.scope(ctx, table, nil)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if err := tx.Create(rows).Error; err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Update applies patch to the matching rows and reports how many changed.
func (c *GormClient) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: %w", table, ErrUnscoped)
	}
	tx, err := c.scope(ctx, table, filters)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	res := tx.Updates(patch)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes the matching rows.
func (c *GormClient) Delete(ctx context.Context, table string, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: %w", table, ErrUnscoped)
	}
	tx, err := c.scope(ctx, table, filters)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if err := tx.Delete(c.tables[table]()).Error; err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// Count returns the number of matching rows.
func (c *GormClient) Count(ctx context.Context, table string, filters ...Filter) (int64, error) {
	tx, err := c.scope(ctx, table, filters)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
