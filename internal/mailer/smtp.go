package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/caleslawncare/quote-gateway/internal/model"
	"github.com/caleslawncare/quote-gateway/internal/util"
)

type SMTPOpts struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
	HELO     string        // default "localhost"
	Timeout  time.Duration // default 10s

	TLSConfig *tls.Config // STARTTLS client config; default verifies Host
}

// SMTPTransport submits emails to a relay over SMTP.
type SMTPTransport struct {
	opts SMTPOpts
}

func NewSMTPTransport(opts SMTPOpts) *SMTPTransport {
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.HELO == "" {
		opts.HELO = "localhost"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &SMTPTransport{opts: opts}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, email model.Email) (string, error) {
	from, err := mail.ParseAddress(email.From)
	if err != nil {
		return "", fmt.Errorf("smtp: from address: %w", err)
	}
	rcpts := make([]string, 0, len(email.To))
	for _, to := range email.To {
		a, err := mail.ParseAddress(to)
		if err != nil {
			return "", fmt.Errorf("smtp: recipient address: %w", err)
		}
		rcpts = append(rcpts, a.Address)
	}

	id := util.New()
	msg, err := buildMessage(id, t.opts.HELO, email)
	if err != nil {
		return "", fmt.Errorf("smtp: build message: %w", err)
	}

	addr := net.JoinHostPort(t.opts.Host, strconv.Itoa(t.opts.Port))
	dialer := net.Dialer{Timeout: t.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("smtp: connect %s: %w", addr, err)
	}

	deadline := time.Now().Add(t.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return "", fmt.Errorf("smtp: set deadline: %w", err)
	}

	c, err := t.newClient(conn)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.Hello(t.opts.HELO); err != nil {
		return "", fmt.Errorf("smtp: EHLO: %w", err)
	}

	if t.opts.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", t.opts.Username, t.opts.Password)); err != nil {
			return "", fmt.Errorf("smtp: AUTH: %w", err)
		}
	}

	if err := c.Mail(from.Address, nil); err != nil {
		return "", fmt.Errorf("smtp: MAIL FROM: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return "", fmt.Errorf("smtp: RCPT TO: %w", err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("smtp: DATA: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return "", fmt.Errorf("smtp: write data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("smtp: close data: %w", err)
	}

	// the message is accepted once DATA closes
	_ = c.Quit()

	return id, nil
}

// newClient wraps conn, upgrading it with STARTTLS when configured. After the
// upgrade the client has not greeted yet, so Hello can still set the name.
func (t *SMTPTransport) newClient(conn net.Conn) (*smtp.Client, error) {
	if !t.opts.StartTLS {
		return smtp.NewClient(conn), nil
	}

	cfg := t.opts.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: t.opts.Host}
	}
	c, err := smtp.NewClientStartTLS(conn, cfg)
	if err != nil {
		return nil, fmt.Errorf("smtp: STARTTLS: %w", err)
	}
	return c, nil
}

// buildMessage renders a single-part text/html message with CRLF line endings.
func buildMessage(id, domain string, email model.Email) ([]byte, error) {
	var buf bytes.Buffer

	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}

	header("From", email.From)
	header("To", strings.Join(email.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("Message-ID", "<"+id+"@"+domain+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(email.HTML)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
