package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	var products productsFile
	products.Products = []Product{
		{
			ProductID: "PROD001", Name: "Wireless Bluetooth Headphones", Brand: "SoundMax",
			Category: "electronics", Price: 79.99, StockQuantity: 10, Rating: 4.5,
			ReviewsCount: 320, Description: "Noise cancelling over-ear headphones",
			Tags: []string{"wireless", "bluetooth", "audio"},
		},
		{
			ProductID: "PROD002", Name: "Smart Fitness Watch", Brand: "FitTech",
			Category: "electronics", Price: 149.99, StockQuantity: 2, Rating: 4.2,
			ReviewsCount: 150, Description: "Tracks heart rate and sleep",
			Tags: []string{"fitness", "wearable"},
		},
	}
	if err := store.saveJSON("products.json", products); err != nil {
		t.Fatalf("seed products: %v", err)
	}

	var customers customersFile
	customers.Customers = []Customer{
		{
			CustomerID: "CUST001", Name: "Alex Johnson", Email: "alex@email.com",
			LoyaltyTier: "Gold", TotalOrders: 4, TotalSpent: 412.50,
			Address: "12 Oak Street", JoinDate: "2025-01-15", Cart: []CartItem{},
		},
	}
	if err := store.saveJSON("customers.json", customers); err != nil {
		t.Fatalf("seed customers: %v", err)
	}
	return store
}

func TestCreateCustomerAssignsSequentialID(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	created, err := store.CreateCustomer(ctx, Customer{Name: "Sarah Lee", LoyaltyTier: "Bronze"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if created.CustomerID != "CUST002" {
		t.Errorf("Expected CUST002, got %s", created.CustomerID)
	}
	if created.JoinDate != "2026-05-01" {
		t.Errorf("Expected join date stamped, got %s", created.JoinDate)
	}

	found, err := store.CustomerByName(ctx, "sarah lee")
	if err != nil {
		t.Fatalf("CustomerByName (case insensitive): %v", err)
	}
	if found.CustomerID != "CUST002" {
		t.Errorf("Lookup returned %s", found.CustomerID)
	}
}

func TestAddOrderDecrementsStock(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order, err := store.AddOrder(ctx, Order{
		CustomerID:      "CUST001",
		ShippingAddress: "12 Oak Street",
		TotalAmount:     159.98,
		PaymentMethod:   "credit_card",
		Items: []OrderItem{{
			ProductID: "PROD001", ProductName: "Wireless Bluetooth Headphones",
			Quantity: 2, UnitPrice: 79.99, TotalPrice: 159.98,
		}},
	})
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if order.OrderID != "ORD001" {
		t.Errorf("Expected ORD001, got %s", order.OrderID)
	}
	if order.Status != StatusPending {
		t.Errorf("Expected pending status, got %s", order.Status)
	}

	product, err := store.ProductByID(ctx, "PROD001")
	if err != nil {
		t.Fatalf("ProductByID: %v", err)
	}
	if product.StockQuantity != 8 {
		t.Errorf("Expected stock 8 after order, got %d", product.StockQuantity)
	}
}

func TestAddOrderRejectsInsufficientStock(t *testing.T) {
	store := seedStore(t)

	_, err := store.AddOrder(context.Background(), Order{
		CustomerID: "CUST001",
		Items: []OrderItem{{
			ProductID: "PROD002", ProductName: "Smart Fitness Watch",
			Quantity: 5, UnitPrice: 149.99, TotalPrice: 749.95,
		}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order, err := store.AddOrder(ctx, Order{
		CustomerID: "CUST001",
		Items: []OrderItem{{
			ProductID: "PROD001", ProductName: "Wireless Bluetooth Headphones",
			Quantity: 3, UnitPrice: 79.99, TotalPrice: 239.97,
		}},
	})
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	cancelled, err := store.CancelOrder(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("Expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancelledDate != "2026-05-01" {
		t.Errorf("Expected cancellation date stamped, got %s", cancelled.CancelledDate)
	}

	product, err := store.ProductByID(ctx, "PROD001")
	if err != nil {
		t.Fatalf("ProductByID: %v", err)
	}
	if product.StockQuantity != 10 {
		t.Errorf("Expected stock restored to 10, got %d", product.StockQuantity)
	}
}

func TestCancelOrderRejectsShipped(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	order, err := store.AddOrder(ctx, Order{
		CustomerID: "CUST001",
		Status:     StatusShipped,
		Items: []OrderItem{{
			ProductID: "PROD001", ProductName: "Wireless Bluetooth Headphones",
			Quantity: 1, UnitPrice: 79.99, TotalPrice: 79.99,
		}},
	})
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	if _, err := store.CancelOrder(ctx, order.OrderID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable, got %v", err)
	}
}

func TestCancelOrderUnknown(t *testing.T) {
	store := seedStore(t)
	if _, err := store.CancelOrder(context.Background(), "ORD999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddToCartMergesQuantities(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	if err := store.AddToCart(ctx, "CUST001", "PROD001", 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if err := store.AddToCart(ctx, "CUST001", "PROD001", 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	cart, err := store.Cart(ctx, "CUST001")
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if len(cart) != 1 {
		t.Fatalf("Expected merged cart line, got %d lines", len(cart))
	}
	if cart[0].Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", cart[0].Quantity)
	}
}

func TestOrdersByCustomer(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.AddOrder(ctx, Order{
			CustomerID: "CUST001",
			Items: []OrderItem{{
				ProductID: "PROD001", ProductName: "Wireless Bluetooth Headphones",
				Quantity: 1, UnitPrice: 79.99, TotalPrice: 79.99,
			}},
		})
		if err != nil {
			t.Fatalf("AddOrder: %v", err)
		}
	}

	orders, err := store.OrdersByCustomer(ctx, "CUST001")
	if err != nil {
		t.Fatalf("OrdersByCustomer: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("Expected 2 orders, got %d", len(orders))
	}
	if orders[1].OrderID != "ORD002" {
		t.Errorf("Expected sequential ids, got %s", orders[1].OrderID)
	}
}
