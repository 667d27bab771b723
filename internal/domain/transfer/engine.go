package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeledger/internal/core/apperror"
	appctx "tradeledger/internal/core/context"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/tx"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/audit"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/pkg/logger"
)

// Engine is the stock transfer engine. Every public method is one transaction.
type Engine struct {
	txManager tx.Manager
	transfers Repository
	catalog   catalog.Repository
	inventory *inventory.Ledger
	lowStock  inventory.Notifier
	activity  audit.Recorder
}

// NewEngine creates a new transfer engine. lowStock and activity may be nil.
func NewEngine(
	txManager tx.Manager,
	transfers Repository,
	catalogRepo catalog.Repository,
	ledger *inventory.Ledger,
	lowStock inventory.Notifier,
	activity audit.Recorder,
) *Engine {
	if activity == nil {
		activity = audit.NopRecorder{}
	}
	return &Engine{
		txManager: txManager,
		transfers: transfers,
		catalog:   catalogRepo,
		inventory: ledger,
		lowStock:  lowStock,
		activity:  activity,
	}
}

// CreateTransfer moves stock out of the source store and into the destination store.
func (e *Engine) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	if err := validateStores(req.SourceStoreID, req.DestinationStoreID); err != nil {
		return nil, err
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return nil, err
	}
	if id.IsNil(req.ProductID) {
		return nil, apperror.NewValidation("product is required").WithDetail("field", "product_id")
	}

	var (
		created *Transfer
		post    inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := e.sourceProduct(ctx, req.ProductID, req.SourceStoreID)
		if err != nil {
			return err
		}
		dest, err := e.ensureDestinationProduct(ctx, source, req.DestinationStoreID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		t := &Transfer{
			ID:                   id.New(),
			SourceStoreID:        req.SourceStoreID,
			DestinationStoreID:   req.DestinationStoreID,
			ProductID:            source.ID,
			DestinationProductID: dest.ID,
			Quantity:             req.Quantity,
			Status:               StatusPending,
			Notes:                strings.TrimSpace(req.Notes),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := e.transfers.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}

		post, err = e.inventory.AdjustMany(ctx, movement(t, 1))
		if err != nil {
			return err
		}

		t.Status = StatusCompleted
		if err := e.transfers.Update(ctx, t); err != nil {
			return fmt.Errorf("complete transfer %s: %w", t.ID, err)
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	post.Run(appctx.Detach(ctx), e.lowStock)
	logger.Info(ctx, "stock transferred",
		"transfer_id", created.ID,
		"product_id", created.ProductID,
		"source_store_id", created.SourceStoreID,
		"destination_store_id", created.DestinationStoreID,
		"quantity", created.Quantity,
	)
	return created, nil
}

// UpdateTransfer reverses the old movement and applies the new one. Only the source
// store may update, and a cancelled transfer cannot change.
func (e *Engine) UpdateTransfer(ctx context.Context, callerStoreID, transferID id.ID, req UpdateTransferRequest) (*Transfer, error) {
	if req.Quantity != nil {
		if err := validateQuantity(*req.Quantity); err != nil {
			return nil, err
		}
	}

	var (
		updated *Transfer
		post    inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := e.loadOwned(ctx, callerStoreID, transferID, "update")
		if err != nil {
			return err
		}
		if t.Status == StatusCancelled {
			return apperror.NewConflictCode(apperror.CodeTransferCancelled, "cancelled transfers can't be updated").
				WithDetail("transfer_id", t.ID.String())
		}

		next := *t
		if req.DestinationStoreID != nil {
			next.DestinationStoreID = *req.DestinationStoreID
		}
		if req.Quantity != nil {
			next.Quantity = *req.Quantity
		}
		if req.Notes != nil {
			next.Notes = strings.TrimSpace(*req.Notes)
		}
		if err := validateStores(next.SourceStoreID, next.DestinationStoreID); err != nil {
			return err
		}
		if next.DestinationStoreID != t.DestinationStoreID {
			source, err := e.sourceProduct(ctx, t.ProductID, t.SourceStoreID)
			if err != nil {
				return err
			}
			dest, err := e.ensureDestinationProduct(ctx, source, next.DestinationStoreID)
			if err != nil {
				return err
			}
			next.DestinationProductID = dest.ID
		}

		deltas := append(movement(t, -1), movement(&next, 1)...)
		post, err = e.inventory.AdjustMany(ctx, deltas)
		if err != nil {
			return err
		}

		next.Status = StatusCompleted
		next.UpdatedAt = time.Now().UTC()
		if err := e.transfers.Update(ctx, &next); err != nil {
			return fmt.Errorf("update transfer %s: %w", next.ID, err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	post.Run(appctx.Detach(ctx), e.lowStock)
	logger.Info(ctx, "transfer updated",
		"transfer_id", updated.ID,
		"destination_store_id", updated.DestinationStoreID,
		"quantity", updated.Quantity,
	)
	return updated, nil
}

// CancelTransfer gives the stock back to the source store. Only the source store may
// cancel; cancelling twice is a conflict.
func (e *Engine) CancelTransfer(ctx context.Context, callerStoreID, transferID id.ID) (*Transfer, error) {
	var (
		cancelled *Transfer
		post      inventory.PostCommit
	)
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := e.loadOwned(ctx, callerStoreID, transferID, "cancel")
		if err != nil {
			return err
		}
		if t.Status == StatusCancelled {
			return apperror.NewConflictCode(apperror.CodeTransferCancelled, "transfer is already cancelled").
				WithDetail("transfer_id", t.ID.String())
		}

		if t.Status == StatusCompleted {
			post, err = e.inventory.AdjustMany(ctx, movement(t, -1))
			if err != nil {
				return err
			}
		}

		t.Status = StatusCancelled
		t.UpdatedAt = time.Now().UTC()
		if err := e.transfers.Update(ctx, t); err != nil {
			return fmt.Errorf("cancel transfer %s: %w", t.ID, err)
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	post.Run(appctx.Detach(ctx), e.lowStock)
	logger.Info(ctx, "transfer cancelled", "transfer_id", cancelled.ID)
	audit.Record(ctx, e.activity, audit.ActionCancelTransfer,
		fmt.Sprintf("cancelled transfer %s of %s units", cancelled.ID, cancelled.Quantity))
	return cancelled, nil
}

// GetTransfer returns a transfer visible to the store (as source or destination).
func (e *Engine) GetTransfer(ctx context.Context, storeID, transferID id.ID) (*Transfer, error) {
	t, err := e.transfers.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.SourceStoreID != storeID && t.DestinationStoreID != storeID {
		return nil, apperror.NewNotFound("transfer", transferID.String())
	}
	return t, nil
}

// ListTransfers returns the incoming and outgoing transfers of a store.
func (e *Engine) ListTransfers(ctx context.Context, storeID id.ID) ([]Transfer, error) {
	return e.transfers.ListByStore(ctx, storeID)
}

func (e *Engine) loadOwned(ctx context.Context, callerStoreID, transferID id.ID, action string) (*Transfer, error) {
	t, err := e.transfers.GetForUpdate(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.SourceStoreID != callerStoreID {
		return nil, apperror.NewForbidden(fmt.Sprintf("only the source store can %s the transfer", action)).
			WithDetail("transfer_id", t.ID.String())
	}
	return t, nil
}

func (e *Engine) sourceProduct(ctx context.Context, productID, sourceStoreID id.ID) (*catalog.Product, error) {
	p, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.StoreID != sourceStoreID {
		return nil, apperror.NewValidation("product does not belong to the source store").
			WithDetail("product_id", productID.String())
	}
	return p, nil
}

// ensureDestinationProduct finds the product with the same name in the destination
// store, or clones the source product there.
func (e *Engine) ensureDestinationProduct(ctx context.Context, source *catalog.Product, destStoreID id.ID) (*catalog.Product, error) {
	if _, err := e.catalog.GetStore(ctx, destStoreID); err != nil {
		return nil, err
	}

	existing, err := e.catalog.FindProductByName(ctx, destStoreID, source.Name)
	if err == nil {
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("find product %q in store %s: %w", source.Name, destStoreID, err)
	}

	clone := source.CloneInto(destStoreID)
	if err := e.catalog.CreateProduct(ctx, &clone); err != nil {
		return nil, fmt.Errorf("clone product %s into store %s: %w", source.ID, destStoreID, err)
	}
	logger.Info(ctx, "product cloned into destination store",
		"source_product_id", source.ID,
		"product_id", clone.ID,
		"store_id", destStoreID,
	)
	return &clone, nil
}

// movement is the inventory effect of t; factor -1 reverses it.
func movement(t *Transfer, factor int64) []inventory.Delta {
	q := types.Quantity(factor) * t.Quantity
	return []inventory.Delta{
		{ProductID: t.ProductID, StoreID: t.SourceStoreID, Quantity: q.Neg()},
		{ProductID: t.DestinationProductID, StoreID: t.DestinationStoreID, Quantity: q},
	}
}

func validateStores(source, dest id.ID) error {
	if id.IsNil(source) || id.IsNil(dest) {
		return apperror.NewValidation("source and destination stores are required")
	}
	if source == dest {
		return apperror.NewConflictCode(apperror.CodeSameStoreTransfer, "cannot transfer stock to the same store")
	}
	return nil
}

func validateQuantity(q types.Quantity) error {
	if !q.IsPositive() {
		return apperror.NewValidation("transfer quantity must be greater than 0").WithDetail("field", "quantity")
	}
	return nil
}
