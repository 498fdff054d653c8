package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/cache"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProductNotFound = errors.New("product not found")

const productsKey = "catalog:products"

// Catalog serves read-only product data from the record store through a cache.
type Catalog struct {
	store recordstore.Store
	cache cache.Cache
	sfg   singleflight.Group // Prevents cache stampede
	log   *zap.Logger
}

func New(store recordstore.Store, c cache.Cache, log *zap.Logger) *Catalog {
	return &Catalog{store: store, cache: c, log: log}
}

func (c *Catalog) FetchProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)
	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		var p domain.Product
		err := c.cache.Get(ctx, key, &p)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		rows, err := c.store.Select(ctx, recordstore.Query{
			Table:       recordstore.TableProducts,
			FilterField: "product_id",
			FilterValue: id,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch product %d: %w", id, err)
		}
		if len(rows) == 0 {
			return nil, ErrProductNotFound
		}

		product := ProductFromRecord(rows[0])
		c.setAsync(key, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

// ListProducts returns every product ordered by id.
func (c *Catalog) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	v, err, _ := c.sfg.Do(productsKey, func() (interface{}, error) {
		var products []*domain.Product
		err := c.cache.Get(ctx, productsKey, &products)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("cache get error", zap.String("key", productsKey), zap.Error(err))
		}

		rows, err := c.store.Select(ctx, recordstore.Query{Table: recordstore.TableProducts, OrderBy: "product_id"})
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		products = make([]*domain.Product, 0, len(rows))
		for _, r := range rows {
			products = append(products, ProductFromRecord(r))
		}

		c.setAsync(productsKey, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

// Invalidate drops the cached product and the cached product list.
func (c *Catalog) Invalidate(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.cache.Delete(ctx, productKey(id), productsKey); err != nil {
		c.log.Warn("cache invalidate error", zap.Int64("product_id", id), zap.Error(err))
	}
}

func (c *Catalog) setAsync(key string, value any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.cache.Set(ctx, key, value); err != nil {
			c.log.Warn("cache set error", zap.String("key", key), zap.Error(err))
		}
	}()
}

func ProductFromRecord(r recordstore.Record) *domain.Product {
	return &domain.Product{
		ID:       r.Int64("product_id"),
		VendorID: r.Int64("vendor_id"),
		Name:     r.String("product_name"),
		Price:    r.Decimal("price"),
		InStock:  int(r.Int64("in_stock")),
		ImageURL: r.String("image_url"),
	}
}

func productKey(id int64) string {
	return "catalog:product:" + strconv.FormatInt(id, 10)
}
