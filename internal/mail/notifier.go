// Package mail turns budget alert events into e-mail notifications.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"moneywise/internal/amqp"
	"moneywise/internal/core"
	"moneywise/internal/log"
)

// Config holds SMTP settings. An empty Server disables delivery.
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier mails users when their budgets change state.
type Notifier struct {
	cfg    Config
	logger *log.Logger
	send   sendFunc
	now    func() time.Time
}

func NewNotifier(cfg Config, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentMail),
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// Enabled reports whether an SMTP server is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Server != ""
}

// HandleBudgetAlert delivers msg. Without an SMTP server the alert is only
// logged. Messages without a recipient are dropped with a warning.
func (n *Notifier) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := []any{
		log.FieldUserID, msg.UserID,
		log.FieldBudgetID, msg.BudgetID,
		log.FieldBudgetState, msg.State,
		log.FieldPercentUsed, msg.PercentageUsed,
	}

	if msg.Email == "" {
		n.logger.WarnContext(ctx, "Budget alert has no recipient", fields...)
		return nil
	}

	if !n.Enabled() {
		n.logger.InfoContext(ctx, "Budget alert (mail disabled)", append(fields, "subject", Subject(msg))...)
		return nil
	}

	body := n.compose(msg)
	addr := net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Server)
	}

	if err := n.send(addr, auth, envelopeAddress(n.cfg.From), []string{msg.Email}, body); err != nil {
		n.logger.ErrorContext(ctx, "Failed to send budget alert", append(fields, log.FieldError, err)...)
		return fmt.Errorf("send budget alert: %w", err)
	}

	n.logger.InfoContext(ctx, "Budget alert sent", fields...)
	return nil
}

// Subject is the e-mail subject line for msg.
func Subject(msg *amqp.BudgetAlertMessage) string {
	switch core.BudgetState(msg.State) {
	case core.Exceeded:
		return fmt.Sprintf("Budget exceeded: %s", msg.CategoryName)
	case core.Alert:
		return fmt.Sprintf("Budget almost used: %s", msg.CategoryName)
	default:
		return fmt.Sprintf("Budget warning: %s", msg.CategoryName)
	}
}

// Body renders the plain-text message body.
func Body(msg *amqp.BudgetAlertMessage) string {
	amount := core.Money{Cents: msg.AmountCents}
	spent := core.Money{Cents: msg.SpentCents}
	remaining := amount.Sub(spent)

	month := msg.Month
	if d, err := core.ParseDate(msg.Month); err == nil {
		month = d.Format("January 2006")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", msg.Username)
	fmt.Fprintf(&b, "Your %s budget for %s is now %s.\n\n", msg.CategoryName, month, strings.ReplaceAll(msg.State, "_", " "))
	fmt.Fprintf(&b, "Budget:    %s\n", amount.Format(msg.Currency))
	fmt.Fprintf(&b, "Spent:     %s (%.1f%%)\n", spent.Format(msg.Currency), msg.PercentageUsed)
	fmt.Fprintf(&b, "Remaining: %s\n", remaining.Format(msg.Currency))
	b.WriteString("\nMoneyWise\n")
	return b.String()
}

func (n *Notifier) compose(msg *amqp.BudgetAlertMessage) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(msg)))
	fmt.Fprintf(&buf, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(Body(msg), "\n", "\r\n"))
	return buf.Bytes()
}

// envelopeAddress strips a display name: "MoneyWise <a@b>" -> "a@b".
func envelopeAddress(from string) string {
	addr, err := netmail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}
