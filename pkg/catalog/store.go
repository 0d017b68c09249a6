package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a customer, product, or order does not
	// exist.
	ErrNotFound = errors.New("catalog: not found")

	// ErrNotCancellable is returned when an order's status forbids
	// cancellation.
	ErrNotCancellable = errors.New("catalog: order not cancellable")

	// ErrInsufficientStock is returned when an order asks for more units
	// than are available.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// Store is the commerce data contract the agent depends on.
type Store interface {
	Customers(ctx context.Context) ([]Customer, error)
	CustomerByID(ctx context.Context, id string) (*Customer, error)
	CustomerByName(ctx context.Context, name string) (*Customer, error)
	// CreateCustomer assigns the next sequential CUST id and persists the
	// customer. The passed customer's CustomerID is ignored.
	CreateCustomer(ctx context.Context, c Customer) (*Customer, error)

	Products(ctx context.Context) ([]Product, error)
	ProductByID(ctx context.Context, id string) (*Product, error)
	// AdjustStock changes a product's stock by delta (negative on order
	// placement, positive on cancellation).
	AdjustStock(ctx context.Context, productID string, delta int) error

	Orders(ctx context.Context) ([]Order, error)
	OrderByID(ctx context.Context, id string) (*Order, error)
	OrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// AddOrder assigns the next sequential ORD id, persists the order, and
	// decrements stock for each item.
	AddOrder(ctx context.Context, o Order) (*Order, error)
	// CancelOrder moves a pending or processing order to cancelled, stamps
	// the cancellation date, and restores stock.
	CancelOrder(ctx context.Context, orderID string) (*Order, error)

	AddToCart(ctx context.Context, customerID, productID string, quantity int) error
	Cart(ctx context.Context, customerID string) ([]CartItem, error)
}

func nextSequentialID(prefix string, existing []string) string {
	max := 0
	for _, id := range existing {
		var n int
		if _, err := fmt.Sscanf(id, prefix+"%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}
