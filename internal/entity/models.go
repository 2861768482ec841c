package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// User is an account able to buy, and for sellers, to manage products.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Number       string    `json:"number"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// VariationKey identifies one variation of a product. Matching is always
// by (color, size) equality.
type VariationKey struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

// Variation is a specific color/size configuration of a product,
// independently priced and stocked.
type Variation struct {
	Color string          `json:"color"`
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (v Variation) Key() VariationKey {
	return VariationKey{Color: v.Color, Size: v.Size}
}

// Product represents a product in the catalog.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Brand       string      `json:"brand"`
	Images      []string    `json:"images"`
	SellerID    string      `json:"seller_id"`
	Variations  []Variation `json:"variations"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Variation returns the product variation matching the key, or nil. Every
// code path that resolves a variation goes through here so cart, checkout
// and direct order placement cannot diverge.
func (p *Product) Variation(key VariationKey) *Variation {
	for i := range p.Variations {
		if p.Variations[i].Color == key.Color && p.Variations[i].Size == key.Size {
			return &p.Variations[i]
		}
	}
	return nil
}

// CartItem is one line in a cart. Price and stock are snapshots taken when
// the line was added: the price the user saw at add-time is the price used
// at checkout.
type CartItem struct {
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Variation   Variation `json:"variation"`
	Quantity    int       `json:"quantity"`
	Product     *Product  `json:"product,omitempty"`
}

// Cart is the mutable per-user collection of cart items. At most one item
// exists per (product, color, size).
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FindItem returns the index of the item matching (productID, key), or -1.
func (c *Cart) FindItem(productID string, key VariationKey) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID &&
			c.Items[i].Variation.Color == key.Color &&
			c.Items[i].Variation.Size == key.Size {
			return i
		}
	}
	return -1
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
	StatusCompleted OrderStatus = "Completed"
)

// ValidOrderStatus reports whether s is a known lifecycle state.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// OrderItem is a value snapshot of what was purchased. It copies catalog
// data at order-creation time so later price or stock changes never touch
// historical orders.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// Subtotal returns price × quantity for the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total returns the sum of line subtotals.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Payment records how an order was (or is being) paid.
type Payment struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
}

// Order is an immutable-once-created record of a purchase attempt.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Status          OrderStatus     `json:"status"`
	TrackingID      string          `json:"tracking_id,omitempty"`
	Payment         *Payment        `json:"payment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
