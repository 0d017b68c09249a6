package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/voxline/voxline/pkg/catalog"
	"github.com/voxline/voxline/pkg/core/convo"
	"github.com/voxline/voxline/pkg/core/intent"
)

func (a *Agent) handleNameIntroduction(ctx context.Context, sessionID, query, name, convContext string) string {
	if name == "" {
		return a.natural(ctx, query, convContext, "Need customer identification - no name provided")
	}

	existing, err := a.catalog.CustomerByName(ctx, name)
	if err == nil {
		a.convo.Append(ctx, sessionID, convo.RoleSystem,
			fmt.Sprintf("Customer identified: %s (ID: %s)", existing.Name, existing.CustomerID),
			map[string]any{"customer_id": existing.CustomerID, "customer_name": existing.Name})
		return a.natural(ctx, query, convContext,
			fmt.Sprintf("Found existing customer: %s (ID: %s, %s tier)", existing.Name, existing.CustomerID, existing.LoyaltyTier))
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		a.logger.Warn("look up customer", "name", name, "error", err)
		return a.natural(ctx, query, convContext,
			fmt.Sprintf("Meeting new customer %s for the first time", name))
	}

	created, err := a.catalog.CreateCustomer(ctx, catalog.Customer{
		Name:        name,
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@email.com",
		Phone:       "+1-XXX-XXX-XXXX",
		Address:     "Address to be updated",
		LoyaltyTier: "Bronze",
	})
	if err != nil {
		a.logger.Warn("create customer", "name", name, "error", err)
		return a.natural(ctx, query, convContext,
			fmt.Sprintf("Meeting new customer %s for the first time", name))
	}

	a.logger.Info("created customer", "name", created.Name, "customer_id", created.CustomerID)
	a.convo.Append(ctx, sessionID, convo.RoleSystem,
		fmt.Sprintf("New customer created: %s (ID: %s)", created.Name, created.CustomerID),
		map[string]any{"customer_id": created.CustomerID, "customer_name": created.Name})
	return a.natural(ctx, query, convContext,
		fmt.Sprintf("Created new customer account for %s (ID: %s)", name, created.CustomerID))
}

// matchProducts finds catalog products referenced in the query by name
// words, brand, product id, or tags.
func matchProducts(query string, products []catalog.Product) []catalog.Product {
	lower := strings.ToLower(query)
	var matched []catalog.Product
	seen := make(map[string]bool)

	add := func(p catalog.Product) {
		if !seen[p.ProductID] {
			seen[p.ProductID] = true
			matched = append(matched, p)
		}
	}

	for _, p := range products {
		nameMatch := false
		for _, word := range strings.Fields(strings.ToLower(p.Name)) {
			if strings.Contains(lower, word) {
				nameMatch = true
				break
			}
		}
		if nameMatch {
			add(p)
			continue
		}
		if p.Brand != "" && strings.Contains(lower, strings.ToLower(p.Brand)) {
			add(p)
			continue
		}
		if strings.Contains(lower, strings.ToLower(p.ProductID)) {
			add(p)
			continue
		}
		for _, tag := range p.Tags {
			if strings.Contains(lower, strings.ToLower(tag)) {
				add(p)
				break
			}
		}
	}
	return matched
}

func (a *Agent) handleProductQuery(ctx context.Context, query, convContext string) string {
	products, err := a.catalog.Products(ctx)
	if err != nil {
		a.logger.Warn("load products", "error", err)
		return a.natural(ctx, query, convContext, "Customer asking about products - explain available categories and ask what they're looking for")
	}

	matched := matchProducts(query, products)
	if len(matched) == 1 {
		return formatProductInfo(matched[0])
	}
	if len(matched) > 1 {
		if len(matched) > 3 {
			matched = matched[:3]
		}
		return fmt.Sprintf("I found %d matching products:\n%s", len(matched), formatDetailedProductList(matched))
	}
	return a.handleProductSearch(ctx, query, convContext)
}

func (a *Agent) handleOrderStatus(ctx context.Context, query, convContext string) string {
	if orderID := intent.ExtractOrderID(query); orderID != "" {
		order, err := a.catalog.OrderByID(ctx, orderID)
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Sprintf("I couldn't find order %s. Please check the order ID and try again.", orderID)
		}
		if err != nil {
			a.logger.Warn("load order", "order_id", orderID, "error", err)
			return a.natural(ctx, query, convContext, "Customer wants order status - lookup failed, apologize and ask to retry")
		}
		return formatOrderInfo(*order)
	}

	customerID := intent.ExtractCustomerID(query)
	if customerID == "" {
		customerID = intent.LastCustomerID(convContext)
	}
	if customerID != "" {
		orders, err := a.catalog.OrdersByCustomer(ctx, customerID)
		if err != nil {
			a.logger.Warn("load orders", "customer_id", customerID, "error", err)
			return a.natural(ctx, query, convContext, "Customer wants order status - lookup failed, apologize and ask to retry")
		}
		if len(orders) == 0 {
			return fmt.Sprintf("No orders found for customer %s.", customerID)
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i].OrderDate > orders[j].OrderDate })
		if len(orders) == 1 {
			return "Here's your order:\n\n" + formatOrderInfo(orders[0])
		}
		return fmt.Sprintf("Here are your %d orders:\n\n%s", len(orders), formatMultipleOrders(orders))
	}

	return a.natural(ctx, query, convContext,
		"Customer wants order status - need either order ID or customer ID to look up orders")
}

func (a *Agent) handleOrderPlacement(ctx context.Context, sessionID, query, convContext string) string {
	products, err := a.catalog.Products(ctx)
	if err != nil {
		a.logger.Warn("load products", "error", err)
		return a.natural(ctx, query, convContext, "Customer wants to place an order - catalog unavailable, apologize")
	}

	matched := matchProducts(query, products)
	if len(matched) == 0 {
		return a.natural(ctx, query, convContext,
			"Customer wants to place an order - need product name, customer ID, and quantity")
	}
	if len(matched) > 1 {
		if len(matched) > 3 {
			matched = matched[:3]
		}
		var lines []string
		for _, p := range matched {
			lines = append(lines, fmt.Sprintf("- %s - $%.2f", p.Name, p.Price))
		}
		return fmt.Sprintf("I found %d products you mentioned:\n%s\n\nWhich specific product would you like to order? Also, I'll need your customer ID to process the order.",
			len(matched), strings.Join(lines, "\n"))
	}
	product := matched[0]

	customerID := intent.ExtractCustomerID(query)
	if customerID == "" {
		customerID = intent.LastCustomerID(convContext)
	}
	var customer *catalog.Customer
	if customerID != "" {
		customer, err = a.catalog.CustomerByID(ctx, customerID)
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			a.logger.Warn("load customer", "customer_id", customerID, "error", err)
		}
	}
	if customer == nil {
		return fmt.Sprintf("I found the product: %s - $%.2f\n\nTo place this order, I need your customer ID. Please provide your customer ID (like CUST001, CUST002, etc.) If you're a new customer, please say 'I'm a new customer' and I'll help you get set up.",
			product.Name, product.Price)
	}

	quantity := intent.ExtractQuantity(query)
	if product.StockQuantity < quantity {
		return fmt.Sprintf("Sorry, we only have %d units of %s in stock. You requested %d units. Would you like to order the available quantity instead?",
			product.StockQuantity, product.Name, quantity)
	}

	total := product.Price * float64(quantity)
	order, err := a.catalog.AddOrder(ctx, catalog.Order{
		CustomerID:        customer.CustomerID,
		Status:            catalog.StatusPending,
		TotalAmount:       total,
		ShippingAddress:   customer.Address,
		PaymentMethod:     "credit_card",
		EstimatedDelivery: a.now().AddDate(0, 0, 5).Format("2006-01-02"),
		Items: []catalog.OrderItem{{
			ProductID:   product.ProductID,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.Price,
			TotalPrice:  total,
		}},
	})
	if err != nil {
		a.logger.Warn("place order", "customer_id", customer.CustomerID, "error", err)
		return "Sorry, there was an error processing your order. Please try again."
	}

	meta := map[string]any{
		"action":       "order_placed",
		"order_id":     order.OrderID,
		"customer_id":  customer.CustomerID,
		"product_id":   product.ProductID,
		"product_name": product.Name,
		"quantity":     quantity,
		"total_amount": total,
	}
	if a.charger != nil {
		charge, err := a.charger.Charge(ctx, customer.CustomerID, order.OrderID, int64(total*100))
		if err != nil {
			a.logger.Warn("capture payment", "order_id", order.OrderID, "error", err)
		} else {
			meta["payment_id"] = charge.PaymentID
		}
	}
	a.convo.Append(ctx, sessionID, convo.RoleSystem,
		fmt.Sprintf("Order %s placed successfully for %s", order.OrderID, customer.Name), meta)

	return fmt.Sprintf("Order placed successfully!\n\nOrder ID: %s\nProduct: %s\nQuantity: %d\nUnit Price: $%.2f\nTotal Amount: $%.2f\nCustomer: %s\nEstimated Delivery: %s\n\nYour order has been added to our system and will be processed shortly. You can track your order using Order ID: %s",
		order.OrderID, product.Name, quantity, product.Price, total, customer.Name, order.EstimatedDelivery, order.OrderID)
}

func (a *Agent) handleCart(ctx context.Context, query, convContext string) string {
	customerID := intent.LastCustomerID(convContext)
	if customerID == "" {
		return a.natural(ctx, query, convContext,
			"Customer asking about cart operations - need customer identification first")
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "add") || strings.Contains(lower, "put") {
		product := a.productFromContext(ctx, convContext)
		if product == nil {
			return a.natural(ctx, query, convContext,
				"Customer wants to add to cart but no product specified - ask which product")
		}
		if err := a.catalog.AddToCart(ctx, customerID, product.ProductID, 1); err != nil {
			a.logger.Warn("add to cart", "customer_id", customerID, "error", err)
			return a.natural(ctx, query, convContext, "Failed to add item to cart - ask customer to try again")
		}
		return a.natural(ctx, query, convContext,
			fmt.Sprintf("Successfully added %s ($%.2f) to cart - ask about continuing shopping or checkout", product.Name, product.Price))
	}

	if strings.Contains(lower, "cart") {
		items, err := a.catalog.Cart(ctx, customerID)
		if err != nil {
			a.logger.Warn("load cart", "customer_id", customerID, "error", err)
			return a.natural(ctx, query, convContext, "Failed to load cart - ask customer to try again")
		}
		if len(items) == 0 {
			return a.natural(ctx, query, convContext, "Customer's cart is empty - suggest browsing products")
		}
		return a.formatCart(ctx, items)
	}

	return a.natural(ctx, query, convContext, "Customer asking about cart operations - ask what they want to do")
}

// productFromContext finds the most recently discussed product.
func (a *Agent) productFromContext(ctx context.Context, convContext string) *catalog.Product {
	products, err := a.catalog.Products(ctx)
	if err != nil {
		a.logger.Warn("load products", "error", err)
		return nil
	}
	lower := strings.ToLower(convContext)

	for i := range products {
		if strings.Contains(lower, strings.ToLower(products[i].Name)) ||
			strings.Contains(lower, strings.ToLower(products[i].ProductID)) {
			return &products[i]
		}
	}
	if strings.Contains(lower, "headphones") || strings.Contains(lower, "bluetooth") {
		for i := range products {
			if strings.Contains(strings.ToLower(products[i].Name), "headphones") {
				return &products[i]
			}
		}
	}
	return nil
}

func (a *Agent) handleCancellation(ctx context.Context, sessionID, query, convContext string) string {
	orderID := intent.ExtractOrderID(query)
	if orderID == "" {
		return a.natural(ctx, query, convContext,
			"Customer wants to cancel order - need order ID to proceed, explain cancellation policy")
	}

	order, err := a.catalog.OrderByID(ctx, orderID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Sprintf("I couldn't find order %s. Please check the order ID and try again.", orderID)
	}
	if err != nil {
		a.logger.Warn("load order", "order_id", orderID, "error", err)
		return fmt.Sprintf("There was an error cancelling order %s. Please try again or contact support.", orderID)
	}

	switch order.Status {
	case catalog.StatusShipped, catalog.StatusDelivered:
		return fmt.Sprintf("Sorry, order %s cannot be cancelled because it has already been %s. For returns on delivered items, please contact our returns department.",
			orderID, order.Status)
	case catalog.StatusCancelled:
		return fmt.Sprintf("Order %s has already been cancelled.", orderID)
	}

	cancelled, err := a.catalog.CancelOrder(ctx, orderID)
	if err != nil {
		a.logger.Warn("cancel order", "order_id", orderID, "error", err)
		return fmt.Sprintf("There was an error cancelling order %s. Please try again or contact support.", orderID)
	}

	var names []string
	for _, item := range cancelled.Items {
		names = append(names, item.ProductName)
	}
	a.convo.Append(ctx, sessionID, convo.RoleSystem,
		fmt.Sprintf("Order %s cancelled successfully, refund $%.2f", orderID, cancelled.TotalAmount),
		map[string]any{
			"action":          "order_cancelled",
			"order_id":        orderID,
			"customer_id":     cancelled.CustomerID,
			"refund_amount":   cancelled.TotalAmount,
			"cancelled_items": names,
		})

	first := catalog.OrderItem{}
	if len(cancelled.Items) > 0 {
		first = cancelled.Items[0]
	}
	return fmt.Sprintf("Order %s has been successfully cancelled!\n\nCancelled Order Details:\nProduct: %s\nQuantity: %d\nAmount: $%.2f\n\nYour refund of $%.2f will be processed within 3-5 business days. The product stock has been restored to our inventory. Is there anything else I can help you with?",
		orderID, first.ProductName, first.Quantity, cancelled.TotalAmount, cancelled.TotalAmount)
}

var categoryKeywords = map[string][]string{
	"electronics": {"electronics", "electronic", "tech", "gadget", "device", "headphones", "watch", "keyboard", "computer"},
	"clothing":    {"clothing", "clothes", "shirt", "dress", "wear", "fashion", "apparel"},
	"home":        {"home", "house", "kitchen", "coffee", "maker", "appliance"},
	"books":       {"book", "novel", "read", "story", "literature"},
	"sports":      {"sports", "fitness", "exercise", "yoga", "workout", "gym"},
	"beauty":      {"beauty", "cosmetic", "skincare", "cream", "makeup"},
}

func (a *Agent) handleProductSearch(ctx context.Context, query, convContext string) string {
	lower := strings.ToLower(query)

	var categories []string
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				categories = append(categories, category)
				break
			}
		}
	}
	sort.Strings(categories)

	if len(categories) > 0 {
		products, err := a.catalog.Products(ctx)
		if err != nil {
			a.logger.Warn("load products", "error", err)
			return a.natural(ctx, query, convContext, "Customer asking about products - explain available categories and ask what they're looking for")
		}

		var found []catalog.Product
		for _, p := range products {
			for _, category := range categories {
				if p.Category == category {
					found = append(found, p)
					break
				}
			}
		}
		if len(found) > 0 {
			if len(found) > 5 {
				found = found[:5]
			}
			return fmt.Sprintf("Here are products from %s:\n%s",
				strings.Join(categories, ", "), formatDetailedProductList(found))
		}
		return fmt.Sprintf("I don't have any %s products available right now.", strings.Join(categories, ", "))
	}

	for _, kw := range []string{"buy", "purchase", "want", "need", "looking for"} {
		if strings.Contains(lower, kw) {
			return a.natural(ctx, query, convContext,
				"Customer showing buying intent - show available product categories and ask what they're interested in")
		}
	}
	return a.natural(ctx, query, convContext,
		"Customer asking about products - explain available categories and ask what they're looking for")
}

func (a *Agent) handleGeneral(ctx context.Context, query, convContext string) string {
	lower := strings.ToLower(query)

	checks := []struct {
		keywords []string
		note     string
	}{
		{[]string{"hello", "hi", "hey", "good morning", "good afternoon"},
			"Customer greeting - respond naturally and ask how to help"},
		{[]string{"return", "refund"},
			"Customer asking about returns/refunds - explain policy and offer help with specific return"},
		{[]string{"shipping", "delivery"},
			"Customer asking about shipping/delivery - explain options and offer to track specific order"},
		{[]string{"warranty", "guarantee"},
			"Customer asking about warranty - explain typical warranty terms and offer specific product warranty info"},
		{[]string{"payment", "credit card", "paypal"},
			"Customer asking about payment methods - explain accepted payment options and offer help with payment issues"},
	}
	for _, check := range checks {
		for _, kw := range check.keywords {
			if strings.Contains(lower, kw) {
				return a.natural(ctx, query, convContext, check.note)
			}
		}
	}
	return a.natural(ctx, query, convContext, "Customer query unclear - ask naturally what they need help with")
}
