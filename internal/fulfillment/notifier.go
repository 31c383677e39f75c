package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPNotifier sends plain-text mail through an authenticated SMTP relay.
type SMTPNotifier struct {
	host    string
	opts    []mail.Option
	from    string
	timeout time.Duration
	send    func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPNotifier uses implicit TLS on port 465 and mandatory STARTTLS
// otherwise. timeout bounds the dial and every SMTP exchange.
func NewSMTPNotifier(host string, port int, username, password, from string, timeout time.Duration) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTimeout(timeout),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if _, err := mail.NewClient(host, opts...); err != nil {
		return nil, fmt.Errorf("mail.NewClient: %w", err)
	}

	n := &SMTPNotifier{
		host:    host,
		opts:    opts,
		from:    from,
		timeout: timeout,
	}
	n.send = n.dialAndSend
	return n, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// dialAndSend opens a fresh connection per message; a go-mail client holds
// connection state and is not shared between goroutines.
func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(n.host, n.opts...)
	if err != nil {
		return fmt.Errorf("mail.NewClient: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
