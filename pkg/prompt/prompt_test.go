package prompt

import (
	"strings"
	"testing"

	"github.com/voxline/voxline/pkg/catalog"
)

func TestBuildEmptyContextUsesPlaceholders(t *testing.T) {
	out := Build(Context{})
	for _, want := range []string{
		"No products available.",
		"No customer information available.",
		"No products currently being discussed.",
		"No orders currently being discussed.",
		"No previous conversation history.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Prompt missing placeholder %q", want)
		}
	}
}

func TestBuildRendersContext(t *testing.T) {
	out := Build(Context{
		Products: []catalog.Product{{
			ProductID: "PROD001", Name: "Wireless Bluetooth Headphones",
			Brand: "SoundMax", Category: "electronics", Price: 79.99,
			StockQuantity: 10, Rating: 4.5, Description: "Noise cancelling",
		}},
		Customer: &catalog.Customer{
			CustomerID: "CUST001", Name: "Alex Johnson", Email: "alex@email.com",
			LoyaltyTier: "Gold", TotalOrders: 4, TotalSpent: 412.5,
		},
		DiscussedOrders: []catalog.Order{{
			OrderID: "ORD003", Status: "shipped", OrderDate: "2026-04-20",
			TotalAmount: 79.99, TrackingNumber: "TRK12345",
			Items: []catalog.OrderItem{{ProductName: "Wireless Bluetooth Headphones"}},
		}},
		Conversation: "Previous conversation:\nCustomer: hi\n\nCurrent query:",
	})

	for _, want := range []string{
		"Wireless Bluetooth Headphones (ID: PROD001) - $79.99",
		"- Name: Alex Johnson",
		"- Loyalty Tier: Gold",
		"- Total Spent: $412.50",
		"- Order ID: ORD003",
		"Tracking: TRK12345",
		"Estimated Delivery: TBD",
		"Customer: hi",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
	if strings.Contains(out, "No customer information available.") {
		t.Error("Customer placeholder rendered despite customer data")
	}
}
