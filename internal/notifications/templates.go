package notifications

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/northcraft/cabinetry-backend/pkg/documents"
	"github.com/northcraft/cabinetry-backend/pkg/enums"
	"github.com/northcraft/cabinetry-backend/pkg/outbox/payloads"
)

const currency = "AUD"

type content struct {
	Subject string
	Text    string
}

func money(amount decimal.Decimal) string {
	return documents.Money(amount, currency)
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n\n")
}

func quoteSent(name, link string, e payloads.QuoteEvent) content {
	validity := ""
	if e.ValidUntil != nil {
		validity = fmt.Sprintf(" It is valid until %s.", e.ValidUntil.Format("2 Jan 2006"))
	}
	return content{
		Subject: fmt.Sprintf("Your quote %s is ready", e.QuoteNumber),
		Text: lines(
			greeting(name),
			fmt.Sprintf("Quote %s (version %d) comes to %s including GST.%s", e.QuoteNumber, e.Version, money(e.Total), validity),
			fmt.Sprintf("Review and accept it online: %s", link),
			"A PDF copy is attached.",
		),
	}
}

func quoteDecision(customer string, link string, e payloads.QuoteEvent) content {
	verb := "accepted"
	if e.Status == enums.QuoteStatusRejected {
		verb = "rejected"
	}
	body := []string{
		fmt.Sprintf("%s %s quote %s (version %d, %s).", customer, verb, e.QuoteNumber, e.Version, money(e.Total)),
	}
	if e.Reason != "" {
		body = append(body, "Reason: "+e.Reason)
	}
	if e.OrderID != nil {
		body = append(body, fmt.Sprintf("Order created: %s", e.OrderID))
	}
	body = append(body, link)
	return content{
		Subject: fmt.Sprintf("Quote %s %s", e.QuoteNumber, verb),
		Text:    lines(body...),
	}
}

func orderCreated(name, link string, e payloads.OrderCreatedEvent) content {
	deposit := fmt.Sprintf("A deposit of %s is due", money(e.DepositAmount))
	if e.DepositDue != nil {
		deposit += " by " + e.DepositDue.Format("2 Jan 2006")
	}
	return content{
		Subject: fmt.Sprintf("Order %s confirmed", e.OrderNumber),
		Text: lines(
			greeting(name),
			fmt.Sprintf("Thanks for your order. Order %s totals %s including GST.", e.OrderNumber, money(e.Total)),
			deposit+". Production starts once it is received.",
			fmt.Sprintf("Track your order: %s", link),
		),
	}
}

var statusLabels = map[enums.OrderStatus]string{
	enums.OrderStatusAwaitingDeposit:  "awaiting deposit",
	enums.OrderStatusInProduction:     "in production",
	enums.OrderStatusReadyForDispatch: "ready for dispatch",
	enums.OrderStatusDispatched:       "dispatched",
	enums.OrderStatusDelivered:        "delivered",
	enums.OrderStatusCompleted:        "completed",
	enums.OrderStatusCancelled:        "cancelled",
}

func statusLabel(status enums.OrderStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ReplaceAll(string(status), "_", " ")
}

func orderStatusChanged(name, link string, e payloads.OrderStatusChangedEvent) content {
	body := []string{
		greeting(name),
		fmt.Sprintf("Order %s is now %s.", e.OrderNumber, statusLabel(e.To)),
	}
	if e.Reason != "" {
		body = append(body, "Note: "+e.Reason)
	}
	body = append(body, fmt.Sprintf("Details: %s", link))
	return content{
		Subject: fmt.Sprintf("Order %s is %s", e.OrderNumber, statusLabel(e.To)),
		Text:    lines(body...),
	}
}

func orderStatusSMS(e payloads.OrderStatusChangedEvent) string {
	if e.To == enums.OrderStatusDelivered {
		return fmt.Sprintf("Northcraft: order %s has been delivered. Enjoy your new cabinets!", e.OrderNumber)
	}
	return fmt.Sprintf("Northcraft: order %s has been dispatched and is on its way.", e.OrderNumber)
}

func paymentReceipt(name, link string, e payloads.PaymentEvent) content {
	body := []string{
		greeting(name),
		fmt.Sprintf("We received %s towards the %s payment for order %s.", money(e.Amount), e.Milestone, e.OrderNumber),
	}
	if e.BalanceDue.IsPositive() {
		body = append(body, fmt.Sprintf("%s remains outstanding on this milestone.", money(e.BalanceDue)))
	} else {
		body = append(body, "This milestone is now paid in full.")
	}
	body = append(body, fmt.Sprintf("View your payments: %s", link))
	return content{
		Subject: fmt.Sprintf("Payment received for order %s", e.OrderNumber),
		Text:    lines(body...),
	}
}

func paymentOverdue(name, link string, e payloads.PaymentOverdueEvent) content {
	return content{
		Subject: fmt.Sprintf("Payment overdue for order %s", e.OrderNumber),
		Text: lines(
			greeting(name),
			fmt.Sprintf("The %s payment of %s for order %s was due on %s and has not been received.",
				e.Milestone, money(e.AmountDue), e.OrderNumber, e.DueDate.Format("2 Jan 2006")),
			fmt.Sprintf("Pay online: %s", link),
		),
	}
}

func paymentOverdueSMS(e payloads.PaymentOverdueEvent) string {
	return fmt.Sprintf("Northcraft: the %s payment of %s for order %s is overdue. Please pay online or call us.",
		e.Milestone, money(e.AmountDue), e.OrderNumber)
}

func messagePosted(name, link string, e payloads.MessagePostedEvent) content {
	return content{
		Subject: fmt.Sprintf("New message on %s", e.Reference),
		Text: lines(
			greeting(name),
			fmt.Sprintf("There is a new message on %s %s:", e.Scope, e.Reference),
			e.Preview,
			fmt.Sprintf("Reply online: %s", link),
		),
	}
}
