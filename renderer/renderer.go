// Package renderer turns materialized tickets into presentable artifacts:
// a PNG card with the scannable verification code, and a paginated PDF with
// one ticket per page. Rendering is a pure read of ticket data; it can be
// re-invoked at any time (including headless batch regeneration) and always
// reproduces the same artifact from the same ticket.
package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"expo-tickets/models"
	"expo-tickets/monitoring"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canonical card geometry. Cards are always rendered at this fixed design
// size; on-screen scaling is the client's concern.
const (
	CardWidth  = 600
	CardHeight = 280

	qrSize   = 176
	qrMargin = 28
)

var (
	headerColor = color.RGBA{R: 0x1b, G: 0x2a, B: 0x4a, A: 0xff} // deep navy
	accentColor = color.RGBA{R: 0xc9, G: 0xa2, B: 0x27, A: 0xff} // gold
	inkColor    = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	mutedColor  = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
)

// TicketContext bundles a ticket with the purchase and category it renders
// against. The renderer never fetches anything itself.
type TicketContext struct {
	Ticket   *models.Ticket
	Category *models.TicketCategory
	Purchase *models.Purchase
}

// RenderCard draws one ticket at the canonical design size.
func RenderCard(tc TicketContext) (image.Image, error) {
	if tc.Ticket == nil {
		return nil, fmt.Errorf("renderer: nil ticket")
	}

	dst := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Header band with the event name.
	draw.Draw(dst, image.Rect(0, 0, CardWidth, 56), image.NewUniform(headerColor), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(0, 56, CardWidth, 60), image.NewUniform(accentColor), image.Point{}, draw.Src)

	eventName := ""
	if payload, err := models.DecodeVerificationPayload(tc.Ticket.QRCodeData); err == nil {
		eventName = payload.Event
	}
	drawText(dst, 24, 34, eventName, color.White)
	drawText(dst, 24, 48, "ADMIT ONE", accentColor)

	// Left column: attendee and purchase details.
	y := 92
	drawText(dst, 24, y, tc.Ticket.AttendeeName, inkColor)
	if tc.Ticket.Organization != "" {
		y += 18
		drawText(dst, 24, y, tc.Ticket.Organization, mutedColor)
	}

	y += 30
	drawText(dst, 24, y, fmt.Sprintf("Ticket  %s", tc.Ticket.TicketNumber), inkColor)
	if tc.Category != nil {
		y += 18
		drawText(dst, 24, y, fmt.Sprintf("Class   %s", tc.Category.Name), inkColor)
	}
	if tc.Purchase != nil {
		y += 18
		drawText(dst, 24, y, fmt.Sprintf("Ref     %s", tc.Purchase.Reference), inkColor)
		y += 18
		drawText(dst, 24, y, fmt.Sprintf("Paid    %s %s", tc.Purchase.TotalAmount.StringFixed(0), tc.Purchase.Currency), mutedColor)
	}

	drawText(dst, 24, CardHeight-16, "Scan the code at the entrance", mutedColor)

	// The verification payload is encoded fresh on every render; the QR is
	// never stored as an image anywhere.
	qr, err := qrcode.New(tc.Ticket.QRCodeData, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("renderer: qr encode: %w", err)
	}
	qrImg := qr.Image(qrSize)

	qrX := CardWidth - qrSize - qrMargin
	qrY := 60 + (CardHeight-60-qrSize)/2
	draw.Draw(dst, image.Rect(qrX, qrY, qrX+qrSize, qrY+qrSize), qrImg, qrImg.Bounds().Min, draw.Src)

	return dst, nil
}

// RenderPNG rasterizes one card to PNG bytes.
func RenderPNG(tc TicketContext) ([]byte, error) {
	img, err := RenderCard(tc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("renderer: png encode: %w", err)
	}

	monitoring.ArtifactRenders.WithLabelValues("png").Inc()
	return buf.Bytes(), nil
}

// RenderPDF produces a paginated document, one ticket per page, every page
// the card's design size. Single-ticket and batch exports go through the
// same card pipeline, so per-ticket output is identical either way.
func RenderPDF(tcs []TicketContext) ([]byte, error) {
	if len(tcs) == 0 {
		return nil, fmt.Errorf("renderer: no tickets to render")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: CardWidth, Ht: CardHeight},
	})

	for i, tc := range tcs {
		data, err := RenderPNG(tc)
		if err != nil {
			return nil, err
		}

		name := fmt.Sprintf("ticket-%d", i)
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, CardWidth, CardHeight, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("renderer: pdf output: %w", err)
	}

	monitoring.ArtifactRenders.WithLabelValues("pdf").Inc()
	return buf.Bytes(), nil
}

func drawText(dst draw.Image, x, y int, text string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
