// Package invoice формирует текстовые счета для писем о заказах.
package invoice

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/bidmarket-system/internal/model"
)

// Render формирует текстовый счёт по заказу для отправки покупателю.
func Render(order model.Order, user model.User) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Order %s\n", order.Number)
	fmt.Fprintf(&b, "Date: %s\n\n", order.CreatedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(&b, "Customer: %s\n", user.Login)
	fmt.Fprintf(&b, "Email: %s\n", user.Email)
	if user.ShippingAddress != "" {
		fmt.Fprintf(&b, "Shipping address: %s\n", user.ShippingAddress)
	}
	b.WriteString("\nItems:\n")

	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s x%d - $%.2f\n",
			i+1, item.Title, item.Quantity, float64(item.Price)/100)
	}

	fmt.Fprintf(&b, "\nTotal: $%.2f\n", float64(order.Total)/100)
	b.WriteString("\nThank you for your purchase!\n")

	return b.String()
}
