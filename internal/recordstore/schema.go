package recordstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ColumnType int

const (
	Int ColumnType = iota
	Text
	Decimal
	Time
)

type Column struct {
	Name string
	Type ColumnType
}

// Reference points at rows of another table that hold this table's key in Field.
type Reference struct {
	Table string
	Field string
}

type Table struct {
	Name    string
	Key     string
	Columns []Column
	// View tables are read-only.
	View bool
	// Defaults are columns the store fills in when a record omits them.
	Defaults   []string
	Dependents []Reference
}

type Schema map[string]*Table

func (s Schema) Table(name string) (*Table, error) {
	t, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

func (s Schema) writable(name string) (*Table, error) {
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	if t.View {
		return nil, fmt.Errorf("%s is read-only", name)
	}
	return t, nil
}

func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Normalize returns a copy of rec with every value coerced to its column type.
// Unknown columns are rejected.
func (t *Table) Normalize(rec Record) (Record, error) {
	out := make(Record, len(rec))
	for k, v := range rec {
		col, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("unknown column %s.%s", t.Name, k)
		}
		cv, err := col.Coerce(v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

// Coerce converts a value read from a driver or decoded from JSON into the column's Go type:
// int64, string, decimal.Decimal or time.Time. nil passes through.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch c.Type {
	case Int:
		out, err = toInt(v)
	case Text:
		out, err = toText(v)
	case Decimal:
		out, err = toDecimal(v)
	case Time:
		out, err = toTime(v)
	default:
		err = fmt.Errorf("unsupported column type %d", c.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return out, nil
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case decimal.Decimal:
		if !n.IsInteger() {
			return 0, fmt.Errorf("%s is not an integer", n)
		}
		return n.IntPart(), nil
	}
	return 0, fmt.Errorf("cannot use %T as integer", v)
}

func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("cannot use %T as text", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case json.Number:
		return decimal.NewFromString(d.String())
	case int:
		return decimal.NewFromInt(int64(d)), nil
	}
	var d decimal.Decimal
	if err := d.Scan(v); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("cannot use %T as time", v)
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// DefaultSchema describes the storefront database.
var DefaultSchema = Schema{
	TableVendors: {
		Name: TableVendors,
		Key:  "vendor_id",
		Columns: []Column{
			{"vendor_id", Int}, {"name", Text}, {"email", Text}, {"web_site", Text}, {"description", Text},
		},
		Defaults:   []string{"vendor_id"},
		Dependents: []Reference{{Table: TableProducts, Field: "vendor_id"}},
	},
	TableProducts: {
		Name: TableProducts,
		Key:  "product_id",
		Columns: []Column{
			{"product_id", Int}, {"vendor_id", Int}, {"product_name", Text},
			{"price", Decimal}, {"in_stock", Int}, {"image_url", Text},
		},
		Defaults:   []string{"product_id"},
		Dependents: []Reference{{Table: TableOrderDetails, Field: "product_id"}},
	},
	TableCustomers: {
		Name: TableCustomers,
		Key:  "customer_id",
		Columns: []Column{
			{"customer_id", Int}, {"first_name", Text}, {"last_name", Text}, {"email", Text},
		},
		Defaults:   []string{"customer_id"},
		Dependents: []Reference{{Table: TableOrders, Field: "customer_id"}},
	},
	TableOrders: {
		Name: TableOrders,
		Key:  "order_id",
		Columns: []Column{
			{"order_id", Int}, {"user_id", Text}, {"customer_id", Int}, {"order_date", Time},
		},
		Defaults:   []string{"order_id", "order_date"},
		Dependents: []Reference{{Table: TableOrderDetails, Field: "order_id"}},
	},
	TableOrderDetails: {
		Name: TableOrderDetails,
		Key:  "order_details_id",
		Columns: []Column{
			{"order_details_id", Int}, {"order_id", Int}, {"product_id", Int},
			{"quantity", Int}, {"cost", Decimal},
		},
		Defaults: []string{"order_details_id"},
	},
	ViewOrders: {
		Name: ViewOrders,
		Key:  "order_id",
		View: true,
		Columns: []Column{
			{"order_id", Int}, {"customer_id", Int}, {"user_id", Text}, {"order_date", Time}, {"total_cost", Decimal},
		},
	},
	ViewOrderDetails: {
		Name: ViewOrderDetails,
		Key:  "order_details_id",
		View: true,
		Columns: []Column{
			{"order_details_id", Int}, {"order_id", Int}, {"product_id", Int},
			{"product_name", Text}, {"quantity", Int}, {"cost", Decimal},
		},
	},
	ViewRevenueByMonth: {
		Name: ViewRevenueByMonth,
		Key:  "label",
		View: true,
		Columns: []Column{
			{"year", Int}, {"month", Int}, {"label", Text}, {"total_cost", Decimal},
		},
	},
	ViewRevenueByProduct: {
		Name: ViewRevenueByProduct,
		Key:  "product_id",
		View: true,
		Columns: []Column{
			{"product_id", Int}, {"product_name", Text}, {"total_cost", Decimal},
		},
	},
}
