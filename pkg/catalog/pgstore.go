package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PGStore keeps the catalog in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPG connects to Postgres, runs pending migrations, and returns the
// store.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	if err := migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PGStore{pool: pool, now: time.Now}, nil
}

func migrate(dsn string) error {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) Customers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, name, email, phone, address, loyalty_tier,
		       total_orders, total_spent, to_char(join_date, 'YYYY-MM-DD')
		FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.CustomerID, &c.Name, &c.Email, &c.Phone, &c.Address,
			&c.LoyaltyTier, &c.TotalOrders, &c.TotalSpent, &c.JoinDate); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) customerWhere(ctx context.Context, clause string, arg any) (*Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT customer_id, name, email, phone, address, loyalty_tier,
		       total_orders, total_spent, to_char(join_date, 'YYYY-MM-DD')
		FROM customers WHERE `+clause, arg).
		Scan(&c.CustomerID, &c.Name, &c.Email, &c.Phone, &c.Address,
			&c.LoyaltyTier, &c.TotalOrders, &c.TotalSpent, &c.JoinDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	cart, err := s.Cart(ctx, c.CustomerID)
	if err != nil {
		return nil, err
	}
	c.Cart = cart
	return &c, nil
}

func (s *PGStore) CustomerByID(ctx context.Context, id string) (*Customer, error) {
	return s.customerWhere(ctx, "customer_id = $1", id)
}

func (s *PGStore) CustomerByName(ctx context.Context, name string) (*Customer, error) {
	return s.customerWhere(ctx, "lower(name) = lower($1)", name)
}

func (s *PGStore) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var ids []string
	rows, err := tx.Query(ctx, `SELECT customer_id FROM customers FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("lock customers: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan customer id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.CustomerID = nextSequentialID("CUST", ids)
	if c.JoinDate == "" {
		c.JoinDate = s.now().Format("2006-01-02")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO customers (customer_id, name, email, phone, address,
		                       loyalty_tier, total_orders, total_spent, join_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date)`,
		c.CustomerID, c.Name, c.Email, c.Phone, c.Address,
		c.LoyaltyTier, c.TotalOrders, c.TotalSpent, c.JoinDate)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if c.Cart == nil {
		c.Cart = []CartItem{}
	}
	return &c, nil
}

func (s *PGStore) Products(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, name, brand, category, price, stock_quantity,
		       rating, reviews_count, description, tags, specifications
		FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Brand, &p.Category, &p.Price,
			&p.StockQuantity, &p.Rating, &p.ReviewsCount, &p.Description,
			&p.Tags, &p.Specifications); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) ProductByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT product_id, name, brand, category, price, stock_quantity,
		       rating, reviews_count, description, tags, specifications
		FROM products WHERE product_id = $1`, id).
		Scan(&p.ProductID, &p.Name, &p.Brand, &p.Category, &p.Price,
			&p.StockQuantity, &p.Rating, &p.ReviewsCount, &p.Description,
			&p.Tags, &p.Specifications)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return &p, nil
}

func (s *PGStore) AdjustStock(ctx context.Context, productID string, delta int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2
		WHERE product_id = $1`, productID, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return nil
}

const orderColumns = `
	order_id, customer_id, to_char(order_date, 'YYYY-MM-DD'), status,
	total_amount, shipping_address, payment_method,
	coalesce(tracking_number, ''),
	coalesce(to_char(estimated_delivery, 'YYYY-MM-DD'), ''),
	coalesce(to_char(actual_delivery, 'YYYY-MM-DD'), ''),
	coalesce(to_char(cancelled_date, 'YYYY-MM-DD'), ''),
	coalesce(payment_id, '')`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.OrderID, &o.CustomerID, &o.OrderDate, &o.Status,
		&o.TotalAmount, &o.ShippingAddress, &o.PaymentMethod,
		&o.TrackingNumber, &o.EstimatedDelivery, &o.ActualDelivery,
		&o.CancelledDate, &o.PaymentID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) loadItems(ctx context.Context, orders []*Order) error {
	for _, o := range orders {
		rows, err := s.pool.Query(ctx, `
			SELECT product_id, product_name, quantity, unit_price, total_price
			FROM order_items WHERE order_id = $1`, o.OrderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		for rows.Next() {
			var item OrderItem
			if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity,
				&item.UnitPrice, &item.TotalPrice); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item: %w", err)
			}
			o.Items = append(o.Items, item)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) Orders(ctx context.Context) ([]Order, error) {
	return s.ordersWhere(ctx, "TRUE", nil)
}

func (s *PGStore) OrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.ordersWhere(ctx, "customer_id = $1", []any{customerID})
}

func (s *PGStore) ordersWhere(ctx context.Context, clause string, args []any) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+clause+` ORDER BY order_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}

	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = *o
	}
	return out, nil
}

func (s *PGStore) OrderByID(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if err := s.loadItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) AddOrder(ctx context.Context, o Order) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range o.Items {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE product_id = $1 FOR UPDATE`,
			item.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("check stock: %w", err)
		}
		if stock < item.Quantity {
			return nil, fmt.Errorf("product %s has %d units: %w", item.ProductID, stock, ErrInsufficientStock)
		}
	}

	var ids []string
	rows, err := tx.Query(ctx, `SELECT order_id FROM orders FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("lock orders: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	o.OrderID = nextSequentialID("ORD", ids)
	if o.OrderDate == "" {
		o.OrderDate = s.now().Format("2006-01-02")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, customer_id, order_date, status, total_amount,
		                    shipping_address, payment_method, tracking_number,
		                    estimated_delivery, payment_id)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, nullif($8, ''), nullif($9, '')::date, nullif($10, ''))`,
		o.OrderID, o.CustomerID, o.OrderDate, o.Status, o.TotalAmount,
		o.ShippingAddress, o.PaymentMethod, o.TrackingNumber,
		o.EstimatedDelivery, o.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.OrderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $2 WHERE product_id = $1`,
			item.ProductID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &o, nil
}

func (s *PGStore) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order status: %w", err)
	}
	if status != StatusPending && status != StatusProcessing {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, status, ErrNotCancellable)
	}

	cancelled := s.now().Format("2006-01-02")
	_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, cancelled_date = $3::date WHERE order_id = $1`,
		orderID, StatusCancelled, cancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE products p SET stock_quantity = p.stock_quantity + i.quantity
		FROM order_items i
		WHERE i.order_id = $1 AND i.product_id = p.product_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("restore stock: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.OrderByID(ctx, orderID)
}

func (s *PGStore) AddToCart(ctx context.Context, customerID, productID string, quantity int) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE customer_id = $1)`,
		customerID).Scan(&exists); err != nil {
		return fmt.Errorf("check customer: %w", err)
	}
	if !exists {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO cart_items (customer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		customerID, productID, quantity)
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

func (s *PGStore) Cart(ctx context.Context, customerID string) ([]CartItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity, to_char(added_date, 'YYYY-MM-DD HH24:MI:SS')
		FROM cart_items WHERE customer_id = $1 ORDER BY added_date`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.AddedDate); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
