// Package charts builds the admin dashboard series from the reporting views.
package charts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/cache"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "charts:"

type Kind string

const (
	Bar  Kind = "bar"
	Line Kind = "line"
	Pie  Kind = "pie"
)

// Series is one chart: Labels[i] is plotted against Data[i].
type Series struct {
	Kind   Kind              `json:"kind"`
	Title  string            `json:"title"`
	Labels []string          `json:"labels"`
	Data   []decimal.Decimal `json:"data"`
}

type Service struct {
	store recordstore.Store
	cache cache.Cache
	sfg   singleflight.Group
	log   *zap.Logger
}

func New(store recordstore.Store, c cache.Cache, log *zap.Logger) *Service {
	return &Service{store: store, cache: c, log: log}
}

// InStock plots units in stock per product.
func (s *Service) InStock(ctx context.Context) (*Series, error) {
	return s.load(ctx, keyPrefix+"in-stock", func(ctx context.Context) (*Series, error) {
		rows, err := s.store.Select(ctx, recordstore.Query{Table: recordstore.TableProducts, OrderBy: "product_id"})
		if err != nil {
			return nil, err
		}
		out := &Series{Kind: Bar, Title: "Units in stock"}
		for _, r := range rows {
			out.Labels = append(out.Labels, r.String("product_name"))
			out.Data = append(out.Data, decimal.NewFromInt(r.Int64("in_stock")))
		}
		return out, nil
	})
}

// RevenueByMonth plots revenue for each month of year. Months without orders are zero.
func (s *Service) RevenueByMonth(ctx context.Context, year int) (*Series, error) {
	return s.load(ctx, keyPrefix+"revenue-by-month:"+strconv.Itoa(year), func(ctx context.Context) (*Series, error) {
		rows, err := s.store.Select(ctx, recordstore.Query{
			Table:       recordstore.ViewRevenueByMonth,
			OrderBy:     "month",
			FilterField: "year",
			FilterValue: int64(year),
		})
		if err != nil {
			return nil, err
		}
		out := &Series{Kind: Line, Title: fmt.Sprintf("Revenue by month, %d", year)}
		byMonth := make(map[int64]decimal.Decimal, len(rows))
		for _, r := range rows {
			byMonth[r.Int64("month")] = r.Decimal("total_cost")
		}
		for m := time.January; m <= time.December; m++ {
			out.Labels = append(out.Labels, m.String()[:3])
			out.Data = append(out.Data, byMonth[int64(m)])
		}
		return out, nil
	})
}

func (s *Service) RevenueByProduct(ctx context.Context) (*Series, error) {
	return s.load(ctx, keyPrefix+"revenue-by-product", func(ctx context.Context) (*Series, error) {
		rows, err := s.store.Select(ctx, recordstore.Query{Table: recordstore.ViewRevenueByProduct, OrderBy: "product_id"})
		if err != nil {
			return nil, err
		}
		out := &Series{Kind: Pie, Title: "Revenue by product"}
		for _, r := range rows {
			out.Labels = append(out.Labels, r.String("product_name"))
			out.Data = append(out.Data, r.Decimal("total_cost"))
		}
		return out, nil
	})
}

// Invalidate drops every cached series.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.DeletePrefix(ctx, keyPrefix); err != nil {
		return fmt.Errorf("invalidate charts: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string, build func(context.Context) (*Series, error)) (*Series, error) {
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		var series Series
		if err := s.cache.Get(ctx, key, &series); err == nil {
			return &series, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		out, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", key, err)
		}
		if err := s.cache.Set(ctx, key, out); err != nil {
			s.log.Warn("cache set error", zap.String("key", key), zap.Error(err))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Series), nil
}
