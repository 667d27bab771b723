package lowstock

import (
	"context"

	"tradeledger/pkg/logger"
)

// LogSender writes notifications to the log. Used when no mail relay is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to Recipient, alert Alert) error {
	logger.Info(ctx, "low stock notification",
		"to", to.Email,
		"role", to.Role,
		"product_name", alert.ProductName,
		"store_name", alert.StoreName,
		"current_quantity", alert.CurrentQuantity,
		"threshold", alert.Threshold,
	)
	return nil
}
