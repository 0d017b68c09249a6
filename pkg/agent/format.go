package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxline/voxline/pkg/catalog"
)

func formatProductInfo(p catalog.Product) string {
	return fmt.Sprintf("%s - $%.2f\nBrand: %s | Category: %s\nRating: %.1f/5 (%d reviews)\nStock: %d available\n%s",
		p.Name, p.Price, p.Brand, p.Category, p.Rating, p.ReviewsCount, p.StockQuantity, p.Description)
}

func formatDetailedProductList(products []catalog.Product) string {
	if len(products) == 0 {
		return "No products found."
	}
	var lines []string
	for i, p := range products {
		stock := "In Stock"
		if p.StockQuantity == 0 {
			stock = "Out of Stock"
		}
		desc := p.Description
		if len(desc) > 100 {
			desc = desc[:100] + "..."
		}
		lines = append(lines, fmt.Sprintf("%d. %s - $%.2f\n   Brand: %s | Rating: %.1f/5 | %s\n   %s",
			i+1, p.Name, p.Price, p.Brand, p.Rating, stock, desc))
	}
	return strings.Join(lines, "\n")
}

func formatOrderInfo(o catalog.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\nStatus: %s\nOrder Date: %s\nTotal: $%.2f\n", o.OrderID, o.Status, o.OrderDate, o.TotalAmount)
	if len(o.Items) > 0 {
		b.WriteString("Items:\n")
		for _, item := range o.Items {
			fmt.Fprintf(&b, "- %s x%d ($%.2f)\n", item.ProductName, item.Quantity, item.TotalPrice)
		}
	}
	if o.TrackingNumber != "" {
		fmt.Fprintf(&b, "Tracking Number: %s\n", o.TrackingNumber)
	}
	if o.EstimatedDelivery != "" {
		fmt.Fprintf(&b, "Estimated Delivery: %s\n", o.EstimatedDelivery)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatMultipleOrders(orders []catalog.Order) string {
	var parts []string
	for _, o := range orders {
		parts = append(parts, formatOrderInfo(o))
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) formatCart(ctx context.Context, items []catalog.CartItem) string {
	var b strings.Builder
	b.WriteString("Your Cart:\n")
	total := 0.0
	for _, item := range items {
		name := item.ProductID
		price := 0.0
		if p, err := a.catalog.ProductByID(ctx, item.ProductID); err == nil {
			name = p.Name
			price = p.Price
		}
		lineTotal := price * float64(item.Quantity)
		fmt.Fprintf(&b, "- %s - Qty: %d - $%.2f\n", name, item.Quantity, lineTotal)
		total += lineTotal
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f\n\nWould you like to proceed to checkout or continue shopping?", total)
	return b.String()
}
