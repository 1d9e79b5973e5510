// Package mailer delivers verification codes and ticket emails over
// SMTP.  Delivery is a convenience, never a correctness mechanism: the
// orchestrator treats every error from this package as a warning and
// the booking stands regardless of the outcome.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"

	"gopkg.in/gomail.v2"
)

// Ticket carries everything needed to render and send one ticket email.
type Ticket struct {
	Name      string
	Email     string
	Reference string
	Seats     []string
	QRPNG     []byte
}

// Sender is the notification surface consumed by the booking service.
type Sender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendTicket(ctx context.Context, t Ticket) error
}

// EventInfo describes the event as shown in outgoing mail.
type EventInfo struct {
	Name  string
	Date  string
	Venue string
}

// SMTPSender sends mail through a single SMTP endpoint using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	event  EventInfo
}

// NewSMTPSender constructs a sender for the given SMTP endpoint.  The
// from address is used verbatim in the From header with the event name
// as display name.
func NewSMTPSender(host string, port int, username, password, from string, event EventInfo) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		event:  event,
	}
}

// send runs DialAndSend in a goroutine so the caller's context bounds
// the whole SMTP exchange; gomail has no native context support.
func (s *SMTPSender) send(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("mailer: send timed out: %w", ctx.Err())
	}
}

// SendVerificationCode mails the 6-digit code used to confirm a
// pending booking.
func (s *SMTPSender) SendVerificationCode(ctx context.Context, email, code string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.event.Name)
	m.SetHeader("To", email)
	m.SetHeader("Subject", fmt.Sprintf("Verify your email for %s booking", s.event.Name))
	m.SetBody("text/html", fmt.Sprintf("<p>Your verification code is: <b>%s</b></p>", template.HTMLEscapeString(code)))
	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("mailer: verification code to %s: %w", email, err)
	}
	return nil
}

// SendTicket mails the rendered ticket with the QR code attached
// inline.  The HTML references the image through its content ID.
func (s *SMTPSender) SendTicket(ctx context.Context, t Ticket) error {
	html, err := renderTicketHTML(ticketView{
		Name:      t.Name,
		Reference: t.Reference,
		Seats:     strings.Join(t.Seats, ", "),
		Event:     s.event,
	})
	if err != nil {
		return fmt.Errorf("mailer: render ticket: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.event.Name)
	m.SetHeader("To", t.Email)
	m.SetHeader("Subject", fmt.Sprintf("Your Ticket for %s - %s", s.event.Name, t.Reference))
	m.SetBody("text/html", html)
	m.Embed("qr-code.png",
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(t.QRPNG)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-ID": {"<qrcode@ticket>"}}),
	)
	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("mailer: ticket %s to %s: %w", t.Reference, t.Email, err)
	}
	return nil
}

type ticketView struct {
	Name      string
	Reference string
	Seats     string
	Event     EventInfo
}

var ticketTmpl = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; background: #f4f4f7; padding: 24px;">
    <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
      <h1 style="margin-top: 0;">{{.Event.Name}}</h1>
      <p>Hi {{.Name}},</p>
      <p>Your seat is confirmed. Show the QR code below at the entrance.</p>
      <table style="width: 100%; border-collapse: collapse;">
        <tr><td style="padding: 6px 0; color: #666;">Reference</td><td><b>{{.Reference}}</b></td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Seat(s)</td><td><b>{{.Seats}}</b></td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Date</td><td>{{.Event.Date}}</td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Venue</td><td>{{.Event.Venue}}</td></tr>
      </table>
      <div style="text-align: center; margin: 24px 0;">
        <img src="cid:qrcode@ticket" alt="Ticket QR code" width="300" height="300"/>
      </div>
      <p style="color: #999; font-size: 12px;">Keep this email; the ticket can be resent at any time with your reference.</p>
    </div>
  </body>
</html>`))

func renderTicketHTML(v ticketView) (string, error) {
	var buf bytes.Buffer
	if err := ticketTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
