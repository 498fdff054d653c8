package cart

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartFeature struct {
	catalog *MockCatalog
	store   *MockStore
	surface *recordingSurface
	session *MockSessions
	manager *Manager
	err     error
}

func (c *cartFeature) reset() {
	c.catalog = &MockCatalog{Products: map[int64]domain.Product{}}
	c.store = &MockStore{}
	c.surface = &recordingSurface{}
	c.session = &MockSessions{}
	c.err = nil
	c.manager = NewManager(Deps{
		Store:    c.store,
		Catalog:  c.catalog,
		Sessions: c.session,
		Surface:  c.surface,
		Log:      zap.NewNop(),
	})
}

func (c *cartFeature) theCatalogHasProducts(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		id, err := strconv.ParseInt(row.Cells[0].Value, 10, 64)
		if err != nil {
			return err
		}
		price, err := decimal.NewFromString(row.Cells[2].Value)
		if err != nil {
			return err
		}
		c.catalog.Products[id] = domain.Product{ID: id, Name: row.Cells[1].Value, Price: price}
	}
	return nil
}

func (c *cartFeature) iAmSignedIn(userID string, customerID int64) error {
	c.session.Session = &domain.Session{UserID: userID, CustomerID: customerID}
	return nil
}

func (c *cartFeature) iAddProduct(id int64) error {
	_, c.err = c.manager.AddProduct(context.Background(), id)
	return nil
}

func (c *cartFeature) iRemoveProduct(id int64) error {
	c.err = c.manager.RemoveItem(id)
	return nil
}

func (c *cartFeature) iConfirmThePurchase() error {
	_, c.err = c.manager.ConfirmPurchase()
	return nil
}

func (c *cartFeature) iFinalizeThePurchase() error {
	_, c.err = c.manager.FinalizePurchase(context.Background())
	return nil
}

func (c *cartFeature) theCartHasLines(n int) error {
	if got := len(c.manager.State().Lines); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartFeature) lineHasQuantityAndCost(id int64, qty int, cost string) error {
	for _, l := range c.manager.State().Lines {
		if l.ProductID != id {
			continue
		}
		if l.Quantity != qty || l.LineCost.StringFixed(2) != cost {
			return fmt.Errorf("line %d: quantity %d cost %s", id, l.Quantity, l.LineCost.StringFixed(2))
		}
		return nil
	}
	return fmt.Errorf("no line for product %d", id)
}

func (c *cartFeature) theTotalIs(total string) error {
	if got := c.manager.State().Total.StringFixed(2); got != total {
		return fmt.Errorf("expected total %s, got %s", total, got)
	}
	return nil
}

func (c *cartFeature) purchasingIs(state string) error {
	want := state == "enabled"
	if got := c.manager.State().PurchaseEnabled; got != want {
		return fmt.Errorf("expected purchasing %s", state)
	}
	return nil
}

func (c *cartFeature) theOperationFailsWith(msg string) error {
	if c.err == nil {
		return fmt.Errorf("expected error %q, got none", msg)
	}
	if c.err.Error() != msg {
		return fmt.Errorf("expected error %q, got %q", msg, c.err.Error())
	}
	return nil
}

func (c *cartFeature) theConfirmationReads(msg string) error {
	if c.err != nil {
		return c.err
	}
	if n := len(c.surface.Confirmations); n == 0 || c.surface.Confirmations[n-1] != msg {
		return fmt.Errorf("confirmation %v", c.surface.Confirmations)
	}
	return nil
}

func (c *cartFeature) ordersStoredForCustomer(n int, customerID int64) error {
	count := 0
	for _, o := range c.store.Orders {
		if o["customer_id"] == customerID {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d orders, got %d", n, count)
	}
	return nil
}

func (c *cartFeature) orderLinesStored(n int) error {
	if got := len(c.store.Lines); got != n {
		return fmt.Errorf("expected %d order lines, got %d", n, got)
	}
	return nil
}

func initializeCartScenario(ctx *godog.ScenarioContext) {
	c := &cartFeature{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	ctx.Step(`^the catalog has products:$`, c.theCatalogHasProducts)
	ctx.Step(`^I am signed in as user "([^"]*)" for customer (\d+)$`, c.iAmSignedIn)

	ctx.Step(`^I add product (\d+)$`, c.iAddProduct)
	ctx.Step(`^I remove product (\d+)$`, c.iRemoveProduct)
	ctx.Step(`^I confirm the purchase$`, c.iConfirmThePurchase)
	ctx.Step(`^I finalize the purchase$`, c.iFinalizeThePurchase)

	ctx.Step(`^the cart has (\d+) lines?$`, c.theCartHasLines)
	ctx.Step(`^line for product (\d+) has quantity (\d+) and cost "([^"]*)"$`, c.lineHasQuantityAndCost)
	ctx.Step(`^the total is "([^"]*)"$`, c.theTotalIs)
	ctx.Step(`^purchasing is (enabled|disabled)$`, c.purchasingIs)
	ctx.Step(`^the operation fails with "([^"]*)"$`, c.theOperationFailsWith)
	ctx.Step(`^the confirmation reads "([^"]*)"$`, c.theConfirmationReads)
	ctx.Step(`^(\d+) orders? (?:is|are) stored for customer (\d+)$`, c.ordersStoredForCustomer)
	ctx.Step(`^(\d+) order lines are stored$`, c.orderLinesStored)
}

func TestCartFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
