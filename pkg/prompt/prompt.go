// Package prompt assembles the system prompt for the support agent. The
// template carries the agent's role and behavior rules; Build fills the
// context slots with live catalog data and the conversation so far.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxline/voxline/pkg/catalog"
)

const template = `# ROLE
You are Sarah, an intelligent AI customer support assistant for a comprehensive e-commerce platform. You are the primary point of contact for all customer interactions, providing expert assistance with products, orders, and account management.

# TASKS
Your primary responsibilities include:

## Customer Management
- Greet customers warmly and establish rapport
- Help customers create new accounts or access existing ones
- Provide account information and loyalty tier details

## Product Assistance
- Provide detailed product information, specifications, and pricing
- Help customers find products based on their needs and preferences
- Offer product recommendations and comparisons
- Check product availability and stock levels

## Order Management
- Help customers place new orders with proper product selection
- Provide real-time order status and tracking information
- Handle order cancellations and refunds
- Explain delivery timelines and shipping options

## Support & Problem Resolution
- Address customer concerns and complaints
- Offer alternatives when products are unavailable
- Ensure customer satisfaction and retention

# BEHAVIOR GUIDELINES

## Communication Style
- Be warm, professional, and genuinely helpful
- Use the customer's name when you know it to personalize interactions
- Keep responses conversational and natural, avoiding robotic language
- Be concise but thorough, providing complete information without overwhelming

## Response Approach
- Always acknowledge the customer's request before providing information
- Ask clarifying questions when needed to better understand their needs
- Provide specific, actionable information rather than generic responses
- Confirm understanding and next steps

## Error Handling
- If you don't have specific information, be honest about it
- Never make up information or guess at details
- Always provide a clear path forward, even if you can't solve the immediate issue

## Special Instructions
- When customers want to place orders, guide them through the process step-by-step
- For order inquiries, provide comprehensive status information
- When handling cancellations, explain the refund process and timeline
- Always confirm important actions before proceeding

# CONTEXT
You have access to real-time data from the following sources:

## Available Products
%s

## Current Customer Information
%s

## Products Currently Discussed
%s

## Orders Currently Discussed
%s

## Conversation History
%s

# INSTRUCTIONS
Based on the customer's query, provide a helpful, accurate, and personalized response using the available context. Be natural, conversational, and focus on solving their specific needs while maintaining a professional and friendly tone.`

// Placeholders rendered when a context slot has no data.
const (
	noProducts     = "No products available."
	noCustomer     = "No customer information available."
	noDiscussion   = "No products currently being discussed."
	noOrders       = "No orders currently being discussed."
	noConversation = "No previous conversation history."
)

// Context holds the data rendered into the prompt's context slots. Any
// field may be empty.
type Context struct {
	Products          []catalog.Product
	Customer          *catalog.Customer
	DiscussedProducts []catalog.Product
	DiscussedOrders   []catalog.Order
	Conversation      string
}

// Build renders the full system prompt.
func Build(c Context) string {
	return fmt.Sprintf(template,
		renderProducts(c.Products),
		renderCustomer(c.Customer),
		renderDiscussedProducts(c.DiscussedProducts),
		renderDiscussedOrders(c.DiscussedOrders),
		renderConversation(c.Conversation),
	)
}

func renderProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return noProducts
	}
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (ID: %s) - $%.2f\n", p.Name, p.ProductID, p.Price)
		fmt.Fprintf(&b, "  Brand: %s | Category: %s\n", p.Brand, p.Category)
		fmt.Fprintf(&b, "  Stock: %d | Rating: %.1f/5\n", p.StockQuantity, p.Rating)
		fmt.Fprintf(&b, "  Description: %s\n\n", p.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCustomer(c *catalog.Customer) string {
	if c == nil {
		return noCustomer
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", c.Name)
	fmt.Fprintf(&b, "- Customer ID: %s\n", c.CustomerID)
	fmt.Fprintf(&b, "- Email: %s\n", c.Email)
	fmt.Fprintf(&b, "- Phone: %s\n", c.Phone)
	fmt.Fprintf(&b, "- Loyalty Tier: %s\n", c.LoyaltyTier)
	fmt.Fprintf(&b, "- Total Orders: %d\n", c.TotalOrders)
	fmt.Fprintf(&b, "- Total Spent: $%.2f\n", c.TotalSpent)
	fmt.Fprintf(&b, "- Join Date: %s\n", orUnknown(c.JoinDate))
	fmt.Fprintf(&b, "- Address: %s", orNotProvided(c.Address))
	return b.String()
}

func renderDiscussedProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return noDiscussion
	}
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (ID: %s) - $%.2f\n", p.Name, p.ProductID, p.Price)
		fmt.Fprintf(&b, "  Brand: %s | Stock: %d\n", p.Brand, p.StockQuantity)
		fmt.Fprintf(&b, "  Description: %s\n", p.Description)
		if len(p.Specifications) > 0 {
			fmt.Fprintf(&b, "  Specifications: %s\n", renderSpecs(p.Specifications))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSpecs(specs map[string]string) string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+specs[k])
	}
	return strings.Join(parts, ", ")
}

func renderDiscussedOrders(orders []catalog.Order) string {
	if len(orders) == 0 {
		return noOrders
	}
	var b strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&b, "- Order ID: %s\n", o.OrderID)
		fmt.Fprintf(&b, "  Status: %s\n", o.Status)
		fmt.Fprintf(&b, "  Date: %s\n", o.OrderDate)
		fmt.Fprintf(&b, "  Total: $%.2f\n", o.TotalAmount)
		names := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			names = append(names, item.ProductName)
		}
		fmt.Fprintf(&b, "  Items: %s\n", strings.Join(names, ", "))
		if o.TrackingNumber != "" {
			fmt.Fprintf(&b, "  Tracking: %s\n", o.TrackingNumber)
		}
		fmt.Fprintf(&b, "  Estimated Delivery: %s\n\n", orTBD(o.EstimatedDelivery))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderConversation(history string) string {
	if history == "" {
		return noConversation
	}
	return history
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}

func orTBD(s string) string {
	if s == "" {
		return "TBD"
	}
	return s
}
