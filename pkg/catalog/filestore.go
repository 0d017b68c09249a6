package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore keeps the catalog in three JSON files under a data directory:
// customers.json, products.json, and orders.json. All access goes through a
// single mutex; the store is meant for one process.
type FileStore struct {
	mu  sync.Mutex
	dir string

	now func() time.Time
}

type customersFile struct {
	Customers []Customer `json:"customers"`
}

type productsFile struct {
	Products []Product `json:"products"`
}

type ordersFile struct {
	Orders []Order `json:"orders"`
}

// NewFileStore opens a JSON file store rooted at dir, creating the directory
// and empty data files as needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dir, err)
	}
	s := &FileStore{dir: dir, now: time.Now}

	seeds := map[string]any{
		"customers.json": customersFile{Customers: []Customer{}},
		"products.json":  productsFile{Products: []Product{}},
		"orders.json":    ordersFile{Orders: []Order{}},
	}
	for name, empty := range seeds {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := s.writeJSON(path, empty); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) readJSON(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("read %q: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %q: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}

func (s *FileStore) saveJSON(name string, v any) error {
	return s.writeJSON(filepath.Join(s.dir, name), v)
}

func (s *FileStore) Customers(ctx context.Context) ([]Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f customersFile
	if err := s.readJSON("customers.json", &f); err != nil {
		return nil, err
	}
	return f.Customers, nil
}

func (s *FileStore) CustomerByID(ctx context.Context, id string) (*Customer, error) {
	customers, err := s.Customers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].CustomerID == id {
			return &customers[i], nil
		}
	}
	return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
}

func (s *FileStore) CustomerByName(ctx context.Context, name string) (*Customer, error) {
	customers, err := s.Customers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if strings.EqualFold(customers[i].Name, name) {
			return &customers[i], nil
		}
	}
	return nil, fmt.Errorf("customer %q: %w", name, ErrNotFound)
}

func (s *FileStore) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f customersFile
	if err := s.readJSON("customers.json", &f); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(f.Customers))
	for _, existing := range f.Customers {
		ids = append(ids, existing.CustomerID)
	}
	c.CustomerID = nextSequentialID("CUST", ids)
	if c.JoinDate == "" {
		c.JoinDate = s.now().Format("2006-01-02")
	}
	if c.Cart == nil {
		c.Cart = []CartItem{}
	}

	f.Customers = append(f.Customers, c)
	if err := s.saveJSON("customers.json", f); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *FileStore) Products(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f productsFile
	if err := s.readJSON("products.json", &f); err != nil {
		return nil, err
	}
	return f.Products, nil
}

func (s *FileStore) ProductByID(ctx context.Context, id string) (*Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ProductID == id {
			return &products[i], nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
}

func (s *FileStore) AdjustStock(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStockLocked(productID, delta)
}

func (s *FileStore) adjustStockLocked(productID string, delta int) error {
	var f productsFile
	if err := s.readJSON("products.json", &f); err != nil {
		return err
	}
	for i := range f.Products {
		if f.Products[i].ProductID == productID {
			f.Products[i].StockQuantity += delta
			return s.saveJSON("products.json", f)
		}
	}
	return fmt.Errorf("product %s: %w", productID, ErrNotFound)
}

func (s *FileStore) Orders(ctx context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f ordersFile
	if err := s.readJSON("orders.json", &f); err != nil {
		return nil, err
	}
	return f.Orders, nil
}

func (s *FileStore) OrderByID(ctx context.Context, id string) (*Order, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].OrderID == id {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

func (s *FileStore) OrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	var out []Order
	for _, o := range orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *FileStore) AddOrder(ctx context.Context, o Order) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var products productsFile
	if err := s.readJSON("products.json", &products); err != nil {
		return nil, err
	}
	for _, item := range o.Items {
		found := false
		for i := range products.Products {
			if products.Products[i].ProductID == item.ProductID {
				found = true
				if products.Products[i].StockQuantity < item.Quantity {
					return nil, fmt.Errorf("product %s has %d units: %w",
						item.ProductID, products.Products[i].StockQuantity, ErrInsufficientStock)
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
	}

	var f ordersFile
	if err := s.readJSON("orders.json", &f); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.Orders))
	for _, existing := range f.Orders {
		ids = append(ids, existing.OrderID)
	}
	o.OrderID = nextSequentialID("ORD", ids)
	if o.OrderDate == "" {
		o.OrderDate = s.now().Format("2006-01-02")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	f.Orders = append(f.Orders, o)
	if err := s.saveJSON("orders.json", f); err != nil {
		return nil, err
	}

	for _, item := range o.Items {
		if err := s.adjustStockLocked(item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func (s *FileStore) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f ordersFile
	if err := s.readJSON("orders.json", &f); err != nil {
		return nil, err
	}
	for i := range f.Orders {
		if f.Orders[i].OrderID != orderID {
			continue
		}
		if !f.Orders[i].Cancellable() {
			return nil, fmt.Errorf("order %s is %s: %w", orderID, f.Orders[i].Status, ErrNotCancellable)
		}
		f.Orders[i].Status = StatusCancelled
		f.Orders[i].CancelledDate = s.now().Format("2006-01-02")
		if err := s.saveJSON("orders.json", f); err != nil {
			return nil, err
		}
		for _, item := range f.Orders[i].Items {
			if err := s.adjustStockLocked(item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
		order := f.Orders[i]
		return &order, nil
	}
	return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
}

func (s *FileStore) AddToCart(ctx context.Context, customerID, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f customersFile
	if err := s.readJSON("customers.json", &f); err != nil {
		return err
	}
	for i := range f.Customers {
		if f.Customers[i].CustomerID != customerID {
			continue
		}
		cart := f.Customers[i].Cart
		merged := false
		for j := range cart {
			if cart[j].ProductID == productID {
				cart[j].Quantity += quantity
				merged = true
				break
			}
		}
		if !merged {
			cart = append(cart, CartItem{
				ProductID: productID,
				Quantity:  quantity,
				AddedDate: s.now().Format("2006-01-02 15:04:05"),
			})
		}
		f.Customers[i].Cart = cart
		return s.saveJSON("customers.json", f)
	}
	return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
}

func (s *FileStore) Cart(ctx context.Context, customerID string) ([]CartItem, error) {
	customer, err := s.CustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return customer.Cart, nil
}
