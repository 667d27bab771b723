package lowstock

import (
	"context"
	"strings"

	"tradeledger/internal/core/apperror"
	"tradeledger/pkg/logger"
)

// Directory roles that receive low-stock alerts.
const (
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "super_admin"
	RoleStockManager = "stock_manager"
)

// Recipient is a directory user.
type Recipient struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	CompanyID     string `json:"company_id"`
	AssignedStore string `json:"assigned_store"`
}

// UserQuery selects directory users. Empty fields are not sent.
type UserQuery struct {
	CompanyID string
	Role      string
	StoreID   string
}

// Directory looks users up in the user service.
type Directory interface {
	ListUsers(ctx context.Context, q UserQuery) ([]Recipient, error)
}

// Sender delivers one alert to one recipient.
type Sender interface {
	Send(ctx context.Context, to Recipient, alert Alert) error
}

// Consumer handles one queued alert at a time.
type Consumer struct {
	directory Directory
	sender    Sender
	observer  Observer
}

// NewConsumer creates a consumer. observer may be nil.
func NewConsumer(directory Directory, sender Sender, observer Observer) *Consumer {
	return &Consumer{directory: directory, sender: sender, observer: observer}
}

// Handle processes one message body. A nil return means acknowledge. An error
// matching IsMalformed means reject without retry; any other error means retry.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	alert, err := Decode(body)
	if err != nil {
		c.observeConsume(OutcomeMalformed)
		logger.Error(ctx, "invalid low stock message", "error", err)
		return err
	}

	recipients, err := c.Recipients(ctx, alert.CompanyID, alert.StoreID)
	if err != nil {
		c.observeConsume(OutcomeTransient)
		return apperror.NewTransient("resolve low stock recipients", err)
	}
	if len(recipients) == 0 {
		c.observeConsume(OutcomeOK)
		logger.Warn(ctx, "no recipients for low stock alert",
			"company_id", alert.CompanyID,
			"store_id", alert.StoreID,
		)
		return nil
	}

	sent := 0
	for _, r := range recipients {
		if strings.TrimSpace(r.Email) == "" {
			c.observeDelivery(OutcomeSkipped)
			logger.Warn(ctx, "recipient has no email address", "user_id", r.ID)
			continue
		}
		if err := c.sender.Send(ctx, r, alert); err != nil {
			c.observeDelivery(OutcomeFailed)
			logger.Error(ctx, "low stock notification failed",
				"user_id", r.ID,
				"role", r.Role,
				"error", err,
			)
			continue
		}
		sent++
		c.observeDelivery(OutcomeOK)
	}

	c.observeConsume(OutcomeOK)
	logger.Info(ctx, "low stock alert processed",
		"product_name", alert.ProductName,
		"store_id", alert.StoreID,
		"sent", sent,
		"recipients", len(recipients),
	)
	return nil
}

// Recipients returns the company's admins and super admins plus the stock managers
// assigned to the store, each user once.
func (c *Consumer) Recipients(ctx context.Context, companyID, storeID string) ([]Recipient, error) {
	queries := []UserQuery{
		{CompanyID: companyID, Role: RoleAdmin},
		{CompanyID: companyID, Role: RoleSuperAdmin},
		{CompanyID: companyID, Role: RoleStockManager, StoreID: storeID},
	}

	seen := make(map[string]bool)
	var out []Recipient
	for _, q := range queries {
		users, err := c.directory.ListUsers(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if !eligible(u, companyID, storeID) {
				continue
			}
			key := u.ID
			if key == "" {
				key = strings.ToLower(u.Email)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, u)
		}
	}
	return out, nil
}

// eligible re-checks the directory answer; the user service may ignore filters.
func eligible(u Recipient, companyID, storeID string) bool {
	if u.CompanyID != companyID {
		return false
	}
	switch strings.ToLower(u.Role) {
	case RoleAdmin, RoleSuperAdmin:
		return true
	case RoleStockManager:
		return u.AssignedStore == storeID
	default:
		return false
	}
}

func (c *Consumer) observeConsume(outcome string) {
	if c.observer != nil {
		c.observer.ObserveConsume(outcome)
	}
}

func (c *Consumer) observeDelivery(outcome string) {
	if c.observer != nil {
		c.observer.ObserveDelivery(outcome)
	}
}
