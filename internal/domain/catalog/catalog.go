// Package catalog describes the products, stores and counterparties the ledger reads.
// Catalog management itself belongs to another service; the ledger only looks
// entries up and clones a product into a destination store on first transfer.
package catalog

import (
	"context"
	"strings"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
)

// Product belongs to exactly one store.
type Product struct {
	ID            id.ID       `db:"id" json:"id"`
	StoreID       id.ID       `db:"store_id" json:"storeId"`
	Name          string      `db:"name" json:"name"`
	Description   string      `db:"description" json:"description,omitempty"`
	Unit          string      `db:"unit" json:"unit,omitempty"`
	CategoryID    *id.ID      `db:"category_id" json:"categoryId,omitempty"`
	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`
	SalePrice     types.Money `db:"sale_price" json:"salePrice"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// CloneInto returns a copy of the product registered in another store.
// Identity is new; every catalog attribute is carried over.
func (p Product) CloneInto(storeID id.ID) Product {
	clone := p
	clone.ID = id.New()
	clone.StoreID = storeID
	clone.CreatedAt = time.Now().UTC()
	if p.CategoryID != nil {
		cat := *p.CategoryID
		clone.CategoryID = &cat
	}
	return clone
}

// Validate checks the minimal shape of a product before it is stored.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	if id.IsNil(p.StoreID) {
		return apperror.NewValidation("product store is required").WithDetail("field", "store_id")
	}
	if p.PurchasePrice.IsNegative() || p.SalePrice.IsNegative() {
		return apperror.NewValidation("product prices must not be negative")
	}
	return nil
}

// Store is a shop of a company.
type Store struct {
	ID        id.ID  `db:"id" json:"id"`
	CompanyID id.ID  `db:"company_id" json:"companyId"`
	Name      string `db:"name" json:"name"`
	IsActive  bool   `db:"is_active" json:"isActive"`
}

// CounterpartyKind distinguishes customers (sales) from suppliers (purchases).
type CounterpartyKind string

const (
	Customer CounterpartyKind = "customer"
	Supplier CounterpartyKind = "supplier"
)

// Repository is the read side of the catalog plus the clone write used by transfers.
type Repository interface {
	GetProduct(ctx context.Context, productID id.ID) (*Product, error)
	GetStore(ctx context.Context, storeID id.ID) (*Store, error)
	// FindProductByName returns NotFound when the store has no product with that name.
	FindProductByName(ctx context.Context, storeID id.ID, name string) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	CounterpartyExists(ctx context.Context, kind CounterpartyKind, storeID, counterpartyID id.ID) (bool, error)
}
