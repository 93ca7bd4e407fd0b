package services

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"

	"github.com/eventsphere/backend/internal/config"
)

type EmailService struct {
	cfg       *config.Config
	templates map[string]*template.Template
}

func NewEmailService(cfg *config.Config) *EmailService {
	service := &EmailService{
		cfg:       cfg,
		templates: make(map[string]*template.Template),
	}

	// Load email templates
	service.loadTemplates()

	return service
}

// loadTemplates loads all email templates
func (s *EmailService) loadTemplates() {
	templateFiles := []string{
		"registration_confirmation.html",
		"ticket_confirmation.html",
		"cancellation_confirmation.html",
	}

	for _, file := range templateFiles {
		path := filepath.Join("templates", file)
		tmpl, err := template.ParseFiles(path)
		if err != nil {
			fmt.Printf("Failed to load template %s: %v\n", file, err)
			continue
		}
		s.templates[file] = tmpl
	}
}

// SendRegistrationConfirmation sends a registration confirmation email
func (s *EmailService) SendRegistrationConfirmation(to, name, username string) error {
	data := map[string]interface{}{
		"Name":     name,
		"Username": username,
		"LoginURL": s.cfg.FrontendURL + "/login",
	}

	subject := "Welcome to EventSphere!"
	return s.sendEmail(to, subject, "registration_confirmation.html", data)
}

// SendCancellationConfirmation sends a booking cancellation confirmation email
func (s *EmailService) SendCancellationConfirmation(to string, cancellationData map[string]interface{}) error {
	subject := "Booking cancelled - EventSphere"
	return s.sendEmail(to, subject, "cancellation_confirmation.html", cancellationData)
}

// SendTicketEmail sends an issued ticket: HTML confirmation inline plus the
// printable PDF as an attachment.
func (s *EmailService) SendTicketEmail(to string, data map[string]interface{}, pdf []byte) error {
	subject := "Your ticket - EventSphere"

	body, err := s.renderBody("ticket_confirmation.html", data)
	if err != nil {
		// Fall back to a minimal inline body so a missing template never
		// blocks ticket delivery
		body = fmt.Sprintf("<p>Hi %v,</p><p>your ticket %v for %v is attached.</p>",
			data["Name"], data["TicketNumber"], data["EventTitle"])
	}

	filename := fmt.Sprintf("ticket-%v.pdf", data["TicketNumber"])
	message := s.buildMessageWithAttachment(to, subject, body, filename, pdf)
	return s.sendSMTP(to, message)
}

// renderBody executes a loaded template into an HTML string
func (s *EmailService) renderBody(templateName string, data interface{}) (string, error) {
	tmpl, exists := s.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}

// sendEmail sends an email using the specified template
func (s *EmailService) sendEmail(to, subject, templateName string, data interface{}) error {
	body, err := s.renderBody(templateName, data)
	if err != nil {
		return err
	}

	from := fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)

	// Build email message
	message := fmt.Sprintf("From: %s\r\n", from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	message += "\r\n"
	message += body

	return s.sendSMTP(to, []byte(message))
}

// buildMessageWithAttachment builds a multipart/mixed message with an HTML
// body and one binary attachment
func (s *EmailService) buildMessageWithAttachment(to, subject, htmlBody, filename string, attachment []byte) []byte {
	const boundary = "eventsphere-ticket-boundary"
	from := fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)

	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: application/pdf\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
	msg.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	// Wrap base64 at 76 characters per RFC 2045
	for len(encoded) > 76 {
		msg.WriteString(encoded[:76])
		msg.WriteString("\r\n")
		encoded = encoded[76:]
	}
	msg.WriteString(encoded)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.Bytes()
}

// sendSMTP sends an email via SMTP
func (s *EmailService) sendSMTP(to string, message []byte) error {
	// Setup authentication
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	// Connect to SMTP server
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	// For TLS connection (port 465)
	if s.cfg.SMTPPort == 465 {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.SMTPHost,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
		defer client.Close()

		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}

		if err := client.Mail(s.cfg.SMTPFrom); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}

		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err = w.Write(message); err != nil {
			return err
		}
		if err = w.Close(); err != nil {
			return err
		}

		return client.Quit()
	}

	// For STARTTLS connection (port 587)
	return smtp.SendMail(addr, auth, s.cfg.SMTPFrom, []string{to}, message)
}
