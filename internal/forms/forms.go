// Package forms validates admin edits of vendors, products and customers before they reach the
// record store.
package forms

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownForm  = errors.New("no form for table")
	ErrUnknownField = errors.New("unknown field")
)

// RecordForm holds the values of one record being edited.
type RecordForm interface {
	Bind(rec recordstore.Record)
	SetValue(field string, v any) error
	Clear()
	Validate() error
	Values() recordstore.Record
}

// ValidationError lists the offending fields. Fields without a location are reported under "_".
type ValidationError struct {
	Table  string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + e.Fields[n]
	}
	return fmt.Sprintf("%s %s: %s", e.Table, ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true

		out := make(map[string]*jsonschema.Schema)
		for _, table := range Tables() {
			data, err := schemaFiles.ReadFile("schemas/" + table + ".json")
			if err != nil {
				compileErr = fmt.Errorf("read %s schema: %w", table, err)
				return
			}
			url := "https://storefront.local/forms/" + table + ".json"
			if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("load %s schema: %w", table, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", table, err)
				return
			}
			out[table] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Tables lists the tables that can be edited through a form.
func Tables() []string {
	return []string{recordstore.TableVendors, recordstore.TableProducts, recordstore.TableCustomers}
}

type Form struct {
	table  *recordstore.Table
	schema *jsonschema.Schema
	values map[string]any
}

var _ RecordForm = (*Form)(nil)

func New(table string) (*Form, error) {
	all, err := schemas()
	if err != nil {
		return nil, err
	}
	s, ok := all[table]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownForm, table)
	}
	t, err := recordstore.DefaultSchema.Table(table)
	if err != nil {
		return nil, err
	}
	return &Form{table: t, schema: s, values: make(map[string]any)}, nil
}

func (f *Form) Table() string { return f.table.Name }

func (f *Form) KeyField() string { return f.table.Key }

// Bind replaces the form values with those of rec. Columns the form does not know are ignored.
func (f *Form) Bind(rec recordstore.Record) {
	f.Clear()
	for k, v := range rec {
		_ = f.SetValue(k, v)
	}
}

// SetValue stores v as JSON would carry it. Empty strings and nil clear the field.
func (f *Form) SetValue(field string, v any) error {
	col, ok := f.table.Column(field)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	if v == nil {
		delete(f.values, field)
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		delete(f.values, field)
		return nil
	}
	f.values[field] = jsonValue(col, v)
	return nil
}

func (f *Form) Clear() {
	f.values = make(map[string]any)
}

func (f *Form) Validate() error {
	doc := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		doc[k] = v
	}
	err := f.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%s: %w: %v", f.table.Name, ErrValidation, err)
	}
	out := &ValidationError{Table: f.table.Name, Fields: make(map[string]string)}
	collect(ve, out.Fields)
	return out
}

// collect records the leaf causes of ve by field name.
func collect(ve *jsonschema.ValidationError, fields map[string]string) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collect(c, fields)
		}
		return
	}
	if strings.HasSuffix(ve.KeywordLocation, "/required") {
		_, list, _ := strings.Cut(ve.Message, ": ")
		for _, name := range strings.Split(list, ", ") {
			fields[strings.Trim(name, "'")] = "required"
		}
		return
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if field == "" {
		field = "_"
	}
	if _, seen := fields[field]; !seen {
		fields[field] = ve.Message
	}
}

// Values returns the values coerced to the store's column types. Call Validate first.
func (f *Form) Values() recordstore.Record {
	out := make(recordstore.Record, len(f.values))
	for k, v := range f.values {
		col, _ := f.table.Column(k)
		if c, err := col.Coerce(v); err == nil {
			out[k] = c
		} else {
			out[k] = v
		}
	}
	return out
}

func jsonValue(col recordstore.Column, v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return json.Number(x.String())
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case string:
		if col.Type == recordstore.Int || col.Type == recordstore.Decimal {
			s := strings.TrimSpace(x)
			if _, err := decimal.NewFromString(s); err == nil {
				return json.Number(s)
			}
		}
	}
	return v
}
