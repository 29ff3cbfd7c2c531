// Package alert escalates stock drift to operators.
package alert

import (
	"fmt"
	"storefront/config"
	"storefront/events"
	"storefront/models"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Notifier struct {
	sender Sender
	from   string
	to     []string
	log    *zap.Logger
}

// NewNotifier returns a notifier that mails cfg.To, or only logs when
// alerting is not configured.
func NewNotifier(cfg config.AlertConfig, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Notifier{from: cfg.From, to: cfg.To, log: log.Named("alert")}
	if cfg.Enabled() {
		n.sender = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	}
	return n
}

func (n *Notifier) Subscribe(bus *events.Bus) error {
	return bus.OnDrift(func(e events.DriftRecorded) {
		n.Drift(e.Drift)
	})
}

func (n *Notifier) Drift(d models.StockDrift) {
	n.log.Error("stock drift needs attention",
		zap.String("drift_id", d.ID),
		zap.String("attempt_id", d.AttemptID),
		zap.String("order_id", d.OrderID),
		zap.String("product_id", d.ProductID),
		zap.Int("quantity", d.Quantity),
		zap.String("last_error", d.LastError),
	)
	if n.sender == nil {
		return
	}
	if err := n.sender.DialAndSend(n.message(d)); err != nil {
		n.log.Error("send drift alert", zap.String("drift_id", d.ID), zap.Error(err))
	}
}

func (n *Notifier) message(d models.StockDrift) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", fmt.Sprintf("[storefront] stock drift on %s (%d units)", d.ProductID, d.Quantity))

	var b strings.Builder
	fmt.Fprintf(&b, "Stock could not be returned after %d attempts.\n\n", d.Attempts)
	fmt.Fprintf(&b, "Product:  %s\n", d.ProductID)
	fmt.Fprintf(&b, "Quantity: %d\n", d.Quantity)
	if d.OrderID != "" {
		fmt.Fprintf(&b, "Order:    %s\n", d.OrderID)
	}
	fmt.Fprintf(&b, "Attempt:  %s\n", d.AttemptID)
	fmt.Fprintf(&b, "Reason:   %s\n", d.Reason)
	fmt.Fprintf(&b, "Error:    %s\n", d.LastError)
	fmt.Fprintf(&b, "Recorded: %s\n\n", d.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("The drift sweeper retries open records; resolve manually if it keeps failing.\n")
	m.SetBody("text/plain", b.String())
	return m
}
