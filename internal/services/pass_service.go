package services

import (
	"bytes"
	"fmt"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/models"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// PassService renders the scannable and printable representation of a ticket.
type PassService struct {
	cfg *config.Config
}

func NewPassService(cfg *config.Config) *PassService {
	return &PassService{cfg: cfg}
}

// EncodeQR encodes a ticket's check-in payload as a QR PNG
func (s *PassService) EncodeQR(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, 512)
}

// RenderTicketPDF generates a one-page A4 PDF for the ticket: event details,
// attendee name, ticket number and the scannable QR code.
func (s *PassService) RenderTicketPDF(ticket *models.Ticket, event *models.Event, user *models.User) ([]byte, error) {
	png, err := s.EncodeQR(ticket.QRPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(0, 12, "EventSphere Ticket")
	pdf.Ln(16)

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, event.Title)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	venue := event.Location
	if venue == "" {
		venue = event.OnlineURL
	}
	details := fmt.Sprintf("Date: %s\nVenue: %s\nAttendee: %s\nTicket: %s",
		event.StartsAt.Format("Monday, 02 Jan 2006 15:04"), venue, user.Name, ticket.TicketNumber)
	pdf.MultiCell(0, 6, details, "", "L", false)

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))

	// Center QR on the page
	x := (210.0 - 100.0) / 2.0 // A4 width 210mm, QR size 100mm
	y := pdf.GetY() + 10
	pdf.ImageOptions("qr", x, y, 100, 100, false, opt, 0, "")

	pdf.SetY(y + 110)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Present this QR code at the entrance. Each ticket admits one person.")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
