package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCanceled   = "canceled"
)

// Order is a placed customer order.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	Items           []OrderItem `json:"items"`
	SubtotalAmount  int64       `json:"subtotal_amount"`
	DeliveryAddress string      `json:"delivery_address,omitempty"`
	ContactPhone    string      `json:"contact_phone,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is one line of an order, priced at checkout time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	FarmerID  string `json:"farmer_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Subtotal returns price times quantity.
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// NewOrderFromCart creates a pending order for userID from the cart lines.
func NewOrderFromCart(userID string, cart Cart) *Order {
	now := time.Now().UTC()
	o := &Order{
		ID:             uuid.New().String(),
		UserID:         userID,
		Status:         OrderStatusPending,
		SubtotalAmount: cart.Subtotal(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          make([]OrderItem, 0, len(cart.Items)),
	}
	for _, line := range cart.Items {
		o.Items = append(o.Items, OrderItem{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: line.ProductID,
			FarmerID:  line.FarmerID,
			Name:      line.Name,
			Unit:      line.Unit,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return o
}

// ValidStatuses returns all order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCanceled,
	}
}

// IsValidStatus checks if a status string is known.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// AllowedTransitions defines which status transitions are valid.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCanceled},
		OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCanceled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
		OrderStatusShipped:    {OrderStatusDelivered},
		OrderStatusDelivered:  {},
		OrderStatusCanceled:   {},
	}
}

// CanTransitionTo checks if the order can move to target.
func (o *Order) CanTransitionTo(target string) bool {
	return slices.Contains(AllowedTransitions()[o.Status], target)
}

// HasFarmer reports whether any line belongs to farmerID.
func (o *Order) HasFarmer(farmerID string) bool {
	return slices.ContainsFunc(o.Items, func(i OrderItem) bool {
		return i.FarmerID == farmerID
	})
}

// VisibleTo reports whether id may read the order: its buyer, a farmer
// with a line in it, or an admin.
func (o *Order) VisibleTo(id Identity) bool {
	switch {
	case id.HasRole(RoleAdmin):
		return true
	case o.UserID == id.UserID:
		return true
	case id.HasRole(RoleFarmer):
		return o.HasFarmer(id.UserID)
	}
	return false
}
