// Package notify delivers ticket confirmation emails once an order settles.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/skip2/go-qrcode"
	gomail "github.com/wneessen/go-mail"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/domain"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AppURL is the public base URL; the QR code points at
	// <AppURL>/verify/<orderCode>.
	AppURL string
}

// Mailer sends the ticket email over SMTP with an embedded entry QR code.
type Mailer struct {
	cfg  SMTPConfig
	tmpl *template.Template
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg:  cfg,
		tmpl: template.Must(template.New("ticket").Parse(ticketTemplate)),
	}
}

func (m *Mailer) SendTicket(ctx context.Context, order domain.Order) error {
	qr, err := qrcode.Encode(fmt.Sprintf("%s/verify/%s", m.cfg.AppURL, order.OrderCode), qrcode.Medium, 300)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}

	var body bytes.Buffer
	if err := m.tmpl.Execute(&body, ticketData{
		Name:        order.Name,
		OrderCode:   order.OrderCode,
		NumTickets:  order.NumTickets,
		ShowTime:    order.ShowTime,
		TotalAmount: order.TotalAmount.StringFixed(2),
	}); err != nil {
		return fmt.Errorf("render ticket email: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(order.Email); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(fmt.Sprintf("Your tickets are ready - %s", order.OrderCode))
	msg.SetBodyString(gomail.TypeTextHTML, body.String())
	if err := msg.EmbedReader("ticket-qr.png", bytes.NewReader(qr)); err != nil {
		return fmt.Errorf("embed qr code: %w", err)
	}

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send ticket email: %w", err)
	}
	return nil
}

type ticketData struct {
	Name        string
	OrderCode   string
	NumTickets  int
	ShowTime    string
	TotalAmount string
}

const ticketTemplate = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#0a0a0a;">
  <div style="max-width:600px;margin:0 auto;padding:20px;color:#ccc;">
    <div style="background-color:#111;padding:40px 30px;border-radius:10px;border:1px solid #333;">
      <h1 style="margin:0 0 10px 0;color:#fff;text-align:center;">Your Tickets Are Ready</h1>
      <p>Hi <strong style="color:#fff;">{{.Name}}</strong>,</p>
      <p>Thank you for your purchase! Your payment has been confirmed.</p>
      <div style="background-color:#1a1a1a;padding:25px;border-radius:8px;border:1px solid #333;text-align:center;">
        <div style="font-size:12px;color:#666;text-transform:uppercase;">Ticket Code</div>
        <div style="font-size:28px;font-weight:bold;color:#fff;font-family:monospace;">{{.OrderCode}}</div>
        <img src="cid:ticket-qr.png" alt="Ticket QR Code" style="max-width:180px;margin-top:20px;" />
        <div style="font-size:11px;color:#666;margin-top:10px;">Scan at entrance</div>
      </div>
      <table style="width:100%;margin-top:20px;">
        <tr><td style="color:#666;">Tickets</td><td style="color:#fff;text-align:right;">{{.NumTickets}}</td></tr>
        <tr><td style="color:#666;">Show Time</td><td style="color:#d4a84b;text-align:right;">{{.ShowTime}}</td></tr>
        <tr><td style="color:#666;">Total Paid</td><td style="color:#22c55e;text-align:right;">${{.TotalAmount}}</td></tr>
      </table>
      <p style="color:#999;font-size:13px;margin-top:25px;">
        Please arrive 15 minutes before showtime and present this email at the entrance.
      </p>
    </div>
  </div>
</body>
</html>`
