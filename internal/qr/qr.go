// Package qr encodes ticket metadata into a scannable QR image.  The
// payload is a compact JSON document carrying the booking reference and
// holder identity; venue scanners decode it, the rest of the system
// treats it as opaque bytes.
package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// imageSize is the rendered PNG edge length in pixels.
const imageSize = 300

// TicketPayload is the document embedded in every ticket QR code.
type TicketPayload struct {
	Reference string `json:"ref"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Event     string `json:"event"`
	Verified  bool   `json:"verified"`
}

// Encoder renders ticket payloads as PNG images for a fixed event tag.
type Encoder struct {
	eventName string
}

// NewEncoder returns an Encoder stamping the given event name into
// every payload.
func NewEncoder(eventName string) *Encoder {
	return &Encoder{eventName: eventName}
}

// TicketPNG encodes the booking metadata into a PNG image.  High error
// correction keeps codes readable when printed or shown on scratched
// phone screens.
func (e *Encoder) TicketPNG(ref, email, name string) ([]byte, error) {
	payload := TicketPayload{
		Reference: ref,
		Email:     email,
		Name:      name,
		Event:     e.eventName,
		Verified:  true,
	}
	doc, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qr: marshal payload: %w", err)
	}
	png, err := qrcode.Encode(string(doc), qrcode.High, imageSize)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// DataURL wraps a PNG as a base64 data URL for embedding in HTML.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
