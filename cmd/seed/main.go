// Package main seeds a development database with a demo company: two stores, their
// customers and suppliers, a product catalogue and opening stock. It also prints a
// bearer token per store so the API can be exercised right away.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/auth"
	"tradeledger/internal/infrastructure/storage/postgres"
	"tradeledger/pkg/config"
	"tradeledger/pkg/logger"
)

// seedNamespace makes the demo ids stable, so reseeding is a no-op.
var seedNamespace = uuid.MustParse("5b0f0d4e-2d2c-4a59-9a43-8f7d3c1e6a10")

func seedID(name string) id.ID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

type productSeed struct {
	name     string
	unit     string
	purchase string
	sale     string
	stock    int64
}

var demoProducts = []productSeed{
	{"Espresso beans 1kg", "pcs", "14.50", "22.00", 40},
	{"Oat milk 1l", "pcs", "1.20", "2.10", 120},
	{"Paper cups 12oz", "pack", "3.80", "6.50", 15},
	{"Cold brew concentrate", "l", "6.00", "11.00", 8},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	if err := postgres.ApplySchema(ctx, txm); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	companyID := seedID("company")
	stores := []struct {
		key  string
		name string
	}{
		{"store-main", "Main Street"},
		{"store-harbour", "Harbour"},
	}

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for _, s := range stores {
			storeID := seedID(s.key)
			if _, err := q.Exec(ctx, `
				INSERT INTO stores (id, company_id, name, is_active)
				VALUES ($1, $2, $3, true)
				ON CONFLICT (id) DO NOTHING
			`, storeID, companyID, s.name); err != nil {
				return fmt.Errorf("insert store %s: %w", s.name, err)
			}

			for _, kind := range []string{"customer", "supplier"} {
				if _, err := q.Exec(ctx, `
					INSERT INTO counterparties (id, kind, store_id, name)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (kind, store_id, id) DO NOTHING
				`, seedID(s.key+"/"+kind), kind, storeID, s.name+" walk-in "+kind); err != nil {
					return fmt.Errorf("insert %s: %w", kind, err)
				}
			}
		}

		// Only the first store carries a catalogue; transfers clone products into the second.
		mainStore := seedID(stores[0].key)
		for _, p := range demoProducts {
			productID := seedID("product/" + p.name)
			if _, err := q.Exec(ctx, `
				INSERT INTO products (id, store_id, name, unit, purchase_price, sale_price)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING
			`, productID, mainStore, p.name, p.unit,
				types.MustMoney(p.purchase), types.MustMoney(p.sale)); err != nil {
				return fmt.Errorf("insert product %s: %w", p.name, err)
			}

			if _, err := q.Exec(ctx, `
				INSERT INTO inventory (id, product_id, store_id, quantity, low_stock_threshold, low_stock_notified)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (product_id, store_id) DO NOTHING
			`, seedID("inventory/"+p.name), productID, mainStore,
				types.NewQuantity(p.stock).Int64Scaled(),
				types.NewQuantity(10).Int64Scaled(),
				p.stock <= 10); err != nil {
				return fmt.Errorf("insert stock for %s: %w", p.name, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Infow("demo data seeded", "company_id", companyID, "products", len(demoProducts))

	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is empty, skipping token generation")
		return
	}
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	jwtSvc := auth.NewJWTService(jwtCfg)

	for _, s := range stores {
		token, expires, err := jwtSvc.GenerateAccessToken(appctx.UserContext{
			UserID:    "seed-" + s.key,
			CompanyID: companyID.String(),
			StoreID:   seedID(s.key).String(),
			Email:     s.key + "@tradeledger.local",
			Roles:     []string{"manager"},
		})
		if err != nil {
			log.Fatalw("failed to sign token", "error", err)
		}
		log.Infow("store token",
			"store", s.name,
			"store_id", seedID(s.key),
			"expires_at", expires,
			"token", token,
		)
	}
}
