package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// dialect holds what differs between the SQL backends.
type dialect struct {
	name string
	// classify maps a driver error to ErrConstraint or ErrInvalid. It returns nil for anything else.
	classify func(err error) error
}

// SQLStore is a Store over database/sql. Identifiers are only ever taken from the schema.
type SQLStore struct {
	db      *sql.DB
	schema  Schema
	dialect dialect
	log     *zap.Logger
}

func (s *SQLStore) Select(ctx context.Context, q Query) ([]Record, error) {
	const op = "select"
	t, err := s.schema.Table(q.Table)
	if err != nil {
		return nil, newError(op, q.Table, ErrInvalid, err)
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(t.ColumnNames(), ", "), t.Name)
	if q.FilterField != "" {
		col, ok := t.Column(q.FilterField)
		if !ok {
			return nil, newError(op, t.Name, ErrInvalid, fmt.Errorf("unknown filter column %s", q.FilterField))
		}
		v, errCoerce := col.Coerce(q.FilterValue)
		if errCoerce != nil {
			return nil, newError(op, t.Name, ErrInvalid, errCoerce)
		}
		fmt.Fprintf(&b, " WHERE %s = $1", col.Name)
		args = append(args, bindValue(v))
	}
	if q.OrderBy != "" {
		if _, ok := t.Column(q.OrderBy); !ok {
			return nil, newError(op, t.Name, ErrInvalid, fmt.Errorf("unknown order column %s", q.OrderBy))
		}
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, s.wrap(op, t.Name, err)
	}
	defer rows.Close()

	records, err := scanRecords(t, rows)
	if err != nil {
		return nil, s.wrap(op, t.Name, err)
	}
	return records, nil
}

func (s *SQLStore) Create(ctx context.Context, table string, rec Record) (Record, error) {
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError("create", table, ErrInvalid, err)
	}
	return s.insert(ctx, s.db, t, rec)
}

// CreateMany inserts all records in one transaction.
func (s *SQLStore) CreateMany(ctx context.Context, table string, recs []Record) ([]Record, error) {
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError("create", table, ErrInvalid, err)
	}

	var created []Record
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		created = make([]Record, 0, len(recs))
		for _, rec := range recs {
			c, errInsert := s.insert(ctx, tx, t, rec)
			if errInsert != nil {
				return errInsert
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("create", table, err)
	}
	return created, nil
}

func (s *SQLStore) Update(ctx context.Context, table, keyField string, rec Record) (Record, error) {
	const op = "update"
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError(op, table, ErrInvalid, err)
	}
	if _, ok := t.Column(keyField); !ok {
		return nil, newError(op, table, ErrInvalid, fmt.Errorf("unknown key column %s", keyField))
	}
	values, err := t.Normalize(rec)
	if err != nil {
		return nil, newError(op, table, ErrInvalid, err)
	}
	key, ok := values[keyField]
	if !ok || key == nil {
		return nil, newError(op, table, ErrInvalid, fmt.Errorf("missing key %s", keyField))
	}
	delete(values, keyField)
	if len(values) == 0 {
		return nil, newError(op, table, ErrInvalid, errors.New("nothing to update"))
	}

	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, bindValue(values[c]))
	}
	args = append(args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		t.Name, strings.Join(sets, ", "), keyField, len(args), strings.Join(t.ColumnNames(), ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(op, table, err)
	}
	defer rows.Close()

	updated, err := scanRecords(t, rows)
	if err != nil {
		return nil, s.wrap(op, table, err)
	}
	if len(updated) == 0 {
		return nil, newError(op, table, ErrNotFound, nil)
	}
	return updated[0], nil
}

func (s *SQLStore) Delete(ctx context.Context, table, keyField string, keyValue any) error {
	const op = "delete"
	t, err := s.schema.writable(table)
	if err != nil {
		return newError(op, table, ErrInvalid, err)
	}
	col, ok := t.Column(keyField)
	if !ok {
		return newError(op, table, ErrInvalid, fmt.Errorf("unknown key column %s", keyField))
	}
	key, err := col.Coerce(keyValue)
	if err != nil || key == nil {
		return newError(op, table, ErrInvalid, fmt.Errorf("bad key value %v", keyValue))
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.Name, col.Name), key)
	if err != nil {
		return s.wrap(op, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap(op, table, err)
	}
	if n == 0 {
		return newError(op, table, ErrNotFound, nil)
	}
	return nil
}

// CreateOrder writes the order header, its lines and an order.placed outbox event in one transaction.
func (s *SQLStore) CreateOrder(ctx context.Context, header Record, lines []Record) (Record, []Record, error) {
	orders, _ := s.schema.Table(TableOrders)
	details, _ := s.schema.Table(TableOrderDetails)

	var (
		order   Record
		created []Record
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = s.insert(ctx, tx, orders, header)
		if err != nil {
			return err
		}

		created = make([]Record, 0, len(lines))
		for _, line := range lines {
			l := line.Clone()
			l["order_id"] = order["order_id"]
			c, errInsert := s.insert(ctx, tx, details, l)
			if errInsert != nil {
				return errInsert
			}
			created = append(created, c)
		}

		event, err := newOrderPlacedEvent(order, created)
		if err != nil {
			return err
		}
		return insertOutboxEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, nil, s.wrap("create order", TableOrders, err)
	}
	return order, created, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) insert(ctx context.Context, q querier, t *Table, rec Record) (Record, error) {
	const op = "create"
	values, err := t.Normalize(rec)
	if err != nil {
		return nil, newError(op, t.Name, ErrInvalid, err)
	}
	for _, d := range t.Defaults {
		if v, ok := values[d]; ok && v == nil {
			delete(values, d)
		}
	}

	returning := strings.Join(t.ColumnNames(), ", ")
	var query string
	args := make([]any, 0, len(values))
	if len(values) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", t.Name, returning)
	} else {
		cols := sortedKeys(values)
		marks := make([]string, len(cols))
		for i, c := range cols {
			marks[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, bindValue(values[c]))
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "), returning)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(op, t.Name, err)
	}
	defer rows.Close()

	created, err := scanRecords(t, rows)
	if err != nil {
		return nil, s.wrap(op, t.Name, err)
	}
	if len(created) != 1 {
		return nil, newError(op, t.Name, ErrUnexpected, fmt.Errorf("insert returned %d rows", len(created)))
	}
	return created[0], nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			s.log.Error("rollback failed", zap.Error(errRollback))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// wrap tags err unless it is already a store error.
func (s *SQLStore) wrap(op, table string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if kind := s.dialect.classify(err); kind != nil {
		return newError(op, table, kind, err)
	}
	return newError(op, table, ErrUnexpected, err)
}

func scanRecords(t *Table, rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := make(Record, len(cols))
		for i, name := range cols {
			col, ok := t.Column(name)
			if !ok {
				rec[name] = values[i]
				continue
			}
			v, err := col.Coerce(values[i])
			if err != nil {
				return nil, err
			}
			rec[name] = v
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// bindValue renders times as RFC 3339 text, which both backends parse back the same way.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
