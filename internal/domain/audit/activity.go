// Package audit records destructive ledger operations with the activity collaborator.
package audit

import (
	"context"

	appctx "tradeledger/internal/core/context"
	"tradeledger/pkg/logger"
)

// Actions reported to the activity service.
const (
	ActionDeleteSale     = "delete_sale"
	ActionDeletePurchase = "delete_purchase"
	ActionDeletePayment  = "delete_payment"
	ActionCancelTransfer = "cancel_transfer"
)

// Entry is one activity line.
type Entry struct {
	User        string `json:"user"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// Recorder delivers entries. Implementations must not block for long;
// callers invoke it after commit and ignore its outcome beyond logging.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Record builds an entry for the caller in ctx and hands it to r.
// Failures are logged and swallowed.
func Record(ctx context.Context, r Recorder, action, description string) {
	if r == nil {
		return
	}
	entry := Entry{
		User:        appctx.GetUserID(ctx),
		Action:      action,
		Description: description,
	}
	if err := r.Record(ctx, entry); err != nil {
		logger.Warn(ctx, "activity record failed",
			"action", action,
			"error", err,
		)
	}
}

// NopRecorder discards entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
