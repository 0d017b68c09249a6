// Package catalog holds the commerce data the support agent works from:
// customers, products, and orders. Two backends implement the same Store
// contract, a JSON file store for local development and a Postgres store
// for deployments.
package catalog

// Customer is an account on the platform.
type Customer struct {
	CustomerID  string     `json:"customer_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	LoyaltyTier string     `json:"loyalty_tier"`
	TotalOrders int        `json:"total_orders"`
	TotalSpent  float64    `json:"total_spent"`
	JoinDate    string     `json:"join_date"`
	Cart        []CartItem `json:"cart"`
}

// CartItem is one product line in a customer's cart.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	AddedDate string `json:"added_date"`
}

// Product is a sellable item.
type Product struct {
	ProductID      string            `json:"product_id"`
	Name           string            `json:"name"`
	Brand          string            `json:"brand"`
	Category       string            `json:"category"`
	Price          float64           `json:"price"`
	StockQuantity  int               `json:"stock_quantity"`
	Rating         float64           `json:"rating"`
	ReviewsCount   int               `json:"reviews_count"`
	Description    string            `json:"description"`
	Tags           []string          `json:"tags"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// Order statuses. Only pending and processing orders can be cancelled.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// OrderItem is one product line in an order.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Order is a placed purchase.
type Order struct {
	OrderID           string      `json:"order_id"`
	CustomerID        string      `json:"customer_id"`
	OrderDate         string      `json:"order_date"`
	Status            string      `json:"status"`
	TotalAmount       float64     `json:"total_amount"`
	ShippingAddress   string      `json:"shipping_address"`
	Items             []OrderItem `json:"items"`
	PaymentMethod     string      `json:"payment_method"`
	TrackingNumber    string      `json:"tracking_number,omitempty"`
	EstimatedDelivery string      `json:"estimated_delivery,omitempty"`
	ActualDelivery    string      `json:"actual_delivery,omitempty"`
	CancelledDate     string      `json:"cancelled_date,omitempty"`
	PaymentID         string      `json:"payment_id,omitempty"`
}

// Cancellable reports whether the order is still early enough in its
// lifecycle to cancel.
func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}
