package classroom

import qrcode "github.com/skip2/go-qrcode"

// QRSize is the edge length in pixels of rendered QR codes.
const QRSize = 256

// RenderQR encodes payload as a PNG QR code.
func RenderQR(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, QRSize)
}
