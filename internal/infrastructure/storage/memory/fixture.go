package memory

import (
	"time"

	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/catalog"
)

// Fixture is a store preloaded with one company, two shops and a customer and
// supplier registered in the first shop.
type Fixture struct {
	*Store
	CompanyID id.ID
	ShopA     catalog.Store
	ShopB     catalog.Store
	Customer  id.ID
	Supplier  id.ID
}

// NewFixture creates a seeded store.
func NewFixture() *Fixture {
	f := &Fixture{Store: New(), CompanyID: id.New(), Customer: id.New(), Supplier: id.New()}
	f.ShopA = catalog.Store{ID: id.New(), CompanyID: f.CompanyID, Name: "Main Street", IsActive: true}
	f.ShopB = catalog.Store{ID: id.New(), CompanyID: f.CompanyID, Name: "Harbour", IsActive: true}
	f.AddStore(f.ShopA)
	f.AddStore(f.ShopB)
	f.AddCounterparty(catalog.Customer, f.ShopA.ID, f.Customer)
	f.AddCounterparty(catalog.Supplier, f.ShopA.ID, f.Supplier)
	return f
}

// NewProduct registers a product in storeID with the given prices.
func (f *Fixture) NewProduct(storeID id.ID, name, purchasePrice, salePrice string) catalog.Product {
	p := catalog.Product{
		ID:            id.New(),
		StoreID:       storeID,
		Name:          name,
		Unit:          "pcs",
		PurchasePrice: types.MustMoney(purchasePrice),
		SalePrice:     types.MustMoney(salePrice),
		CreatedAt:     time.Now().UTC(),
	}
	f.AddProduct(p)
	return p
}
