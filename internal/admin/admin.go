// Package admin maintains vendors, products and customers.
package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rtbecker76/universal-electronics2/internal/forms"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"go.uber.org/zap"
)

var ErrUnknownTable = errors.New("table cannot be maintained")

type ProductCache interface {
	Invalidate(ctx context.Context, productID int64)
}

type ChartCache interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	store    recordstore.Store
	products ProductCache
	charts   ChartCache
	log      *zap.Logger
}

func New(store recordstore.Store, products ProductCache, charts ChartCache, log *zap.Logger) *Service {
	return &Service{store: store, products: products, charts: charts, log: log}
}

// List returns the rows of table ordered by key. filterField may be empty.
func (s *Service) List(ctx context.Context, table, filterField string, filterValue any) ([]recordstore.Record, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Select(ctx, recordstore.Query{
		Table:       table,
		OrderBy:     t.Key,
		FilterField: filterField,
		FilterValue: filterValue,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return rows, nil
}

// Submit validates values and updates the record when its key is set, inserting it otherwise.
func (s *Service) Submit(ctx context.Context, table string, values map[string]any) (recordstore.Record, error) {
	if _, err := s.table(table); err != nil {
		return nil, err
	}
	form, err := forms.New(table)
	if err != nil {
		return nil, err
	}

	unknown := make(map[string]string)
	for k, v := range values {
		if err := form.SetValue(k, v); errors.Is(err, forms.ErrUnknownField) {
			unknown[k] = "unknown field"
		}
	}
	if len(unknown) > 0 {
		return nil, &forms.ValidationError{Table: table, Fields: unknown}
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	rec := form.Values()
	var saved recordstore.Record
	if _, ok := rec[form.KeyField()]; ok {
		saved, err = s.store.Update(ctx, table, form.KeyField(), rec)
	} else {
		saved, err = s.store.Create(ctx, table, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", table, err)
	}

	s.log.Info("record saved", zap.String("table", table), zap.Int64("key", saved.Int64(form.KeyField())))
	if table == recordstore.TableProducts {
		s.invalidate(ctx, saved.Int64("product_id"))
	}
	return saved, nil
}

// Delete removes one record. Records that others depend on fail with recordstore.ErrConstraint.
func (s *Service) Delete(ctx context.Context, table string, key int64) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, table, t.Key, key); err != nil {
		return fmt.Errorf("delete %s %d: %w", table, key, err)
	}

	s.log.Info("record deleted", zap.String("table", table), zap.Int64("key", key))
	if table == recordstore.TableProducts {
		s.invalidate(ctx, key)
	}
	return nil
}

func (s *Service) table(name string) (*recordstore.Table, error) {
	if !slices.Contains(forms.Tables(), name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return recordstore.DefaultSchema.Table(name)
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.products != nil {
		s.products.Invalidate(ctx, productID)
	}
	if s.charts != nil {
		if err := s.charts.Invalidate(ctx); err != nil {
			s.log.Warn("chart invalidation failed", zap.Error(err))
		}
	}
}
