// utils/email.go
package utils

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"go-storefront/config"
	"go-storefront/models"
)

// Mailer delivers a single message
type Mailer interface {
	Send(toName, toEmail, subject, htmlContent string) error
}

// postmarkMailer sends through Postmark
type postmarkMailer struct {
	client *postmark.Client
	from   string
}

func (m *postmarkMailer) Send(_, toEmail, subject, htmlContent string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: stripTags(htmlContent),
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	return nil
}

// sendgridMailer sends through SendGrid
type sendgridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func (m *sendgridMailer) Send(toName, toEmail, subject, htmlContent string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(toName, toEmail), stripTags(htmlContent), htmlContent)
	response, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status code %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// logMailer only logs, used when no provider is configured
type logMailer struct {
	logger *slog.Logger
}

func (m *logMailer) Send(_, toEmail, subject, _ string) error {
	m.logger.Info("email not sent, no mail provider configured", "to", toEmail, "subject", subject)
	return nil
}

// EmailService composes storefront notifications and hands them to a Mailer
type EmailService struct {
	mailer Mailer
	logger *slog.Logger
}

// NewEmailService picks the mailer named by cfg.Provider
func NewEmailService(cfg config.MailConfig, logger *slog.Logger) (*EmailService, error) {
	var mailer Mailer
	switch strings.ToLower(cfg.Provider) {
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		mailer = &postmarkMailer{client: postmark.NewClient(cfg.PostmarkToken, ""), from: cfg.Sender}
	case "sendgrid":
		if cfg.SendGridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		mailer = &sendgridMailer{
			client: sendgrid.NewSendClient(cfg.SendGridKey),
			from:   mail.NewEmail(cfg.SenderName, cfg.Sender),
		}
	case "":
		mailer = &logMailer{logger: logger}
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
	return NewEmailServiceWith(mailer, logger), nil
}

// NewEmailServiceWith wraps an existing Mailer
func NewEmailServiceWith(mailer Mailer, logger *slog.Logger) *EmailService {
	return &EmailService{mailer: mailer, logger: logger}
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toName, toEmail, subject, htmlContent string) error {
	if err := es.mailer.Send(toName, toEmail, subject, htmlContent); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendWelcomeEmail greets a newly registered user
func (es *EmailService) SendWelcomeEmail(user models.User) error {
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Your account has been created. Happy shopping!",
		user.Name,
	)
	return es.SendEmail(user.Name, user.Email, "Welcome to the store", htmlContent)
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(user models.User, order models.Order) error {
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed successfully.<br><br>Total Amount: <strong>%.2f</strong><br>Payment Method: <strong>%s</strong><br>Shipping to: %s, %s<br><br>Thank you for shopping with us!",
		user.Name,
		order.ID,
		order.Total,
		order.PaymentMethod,
		order.ShippingAddress.Address,
		order.ShippingAddress.City,
	)
	return es.SendEmail(user.Name, user.Email, "Order Confirmation", htmlContent)
}

// SendOrderStatusEmail tells the user an order was marked paid or delivered
func (es *EmailService) SendOrderStatusEmail(user models.User, order models.Order, status string) error {
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Your order (ID: %s) is now <strong>%s</strong>.<br><br>Thank you for shopping with us!",
		user.Name,
		order.ID,
		status,
	)
	return es.SendEmail(user.Name, user.Email, "Order "+status, htmlContent)
}

// SendAsync runs send in the background and logs a failure
func (es *EmailService) SendAsync(toEmail string, send func() error) {
	go func() {
		if err := send(); err != nil {
			es.logger.Error("failed to send email", "to", toEmail, "error", err)
		}
	}()
}

// stripTags turns the simple HTML bodies above into a plain-text alternative
func stripTags(html string) string {
	replacer := strings.NewReplacer("<br>", "\n", "<strong>", "", "</strong>", "")
	return replacer.Replace(html)
}
