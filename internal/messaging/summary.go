// Package messaging turns placed orders into outbound messages: a readable
// summary, a pre-filled chat link, and the channel that delivers them.
package messaging

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/utafrali/farmmarket/internal/domain"
)

// Message is what a Handoff delivers for one order.
type Message struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Summary string `json:"summary"`
	URI     string `json:"uri"`
}

// FormatAmount renders minor units as a decimal string, e.g. 1250 -> "12.50".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// FormatSummary renders order as the plain-text message sent to the
// marketplace operator.
func FormatSummary(order *domain.Order, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s\n", shortID(order.ID))
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d", item.Name, item.Quantity)
		if item.Unit != "" {
			fmt.Fprintf(&b, " (%s)", item.Unit)
		}
		fmt.Fprintf(&b, ": %s\n", FormatAmount(item.Subtotal()))
	}
	fmt.Fprintf(&b, "Subtotal: %s %s", FormatAmount(order.SubtotalAmount), currency)
	if order.DeliveryAddress != "" {
		fmt.Fprintf(&b, "\nDelivery: %s", order.DeliveryAddress)
	}
	if order.ContactPhone != "" {
		fmt.Fprintf(&b, "\nPhone: %s", order.ContactPhone)
	}
	if order.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", order.Notes)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LinkBuilder builds pre-filled chat composition links of the form
// https://wa.me/<phone>?text=<message>.
type LinkBuilder struct {
	baseURL string
	phone   string
}

// NewLinkBuilder creates a builder targeting phone. Everything but digits
// is stripped from phone; an empty phone yields a share link without a
// recipient.
func NewLinkBuilder(baseURL, phone string) *LinkBuilder {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return &LinkBuilder{baseURL: strings.TrimRight(baseURL, "/"), phone: digits}
}

// Build returns the link carrying text.
func (b *LinkBuilder) Build(text string) string {
	u, err := url.Parse(b.baseURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "https", Host: "wa.me"}
	}
	u.Path = "/" + b.phone
	u.RawQuery = "text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return u.String()
}
