package recordstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one row keyed by column name. Values returned by a Store are already coerced
// to int64, string, decimal.Decimal or time.Time.
type Record map[string]any

func (r Record) Int64(field string) int64 {
	if v, err := toInt(r[field]); err == nil {
		return v
	}
	return 0
}

func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

func (r Record) Decimal(field string) decimal.Decimal {
	if r[field] == nil {
		return decimal.Zero
	}
	if v, err := toDecimal(r[field]); err == nil {
		return v
	}
	return decimal.Zero
}

func (r Record) Time(field string) time.Time {
	if v, ok := r[field].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
