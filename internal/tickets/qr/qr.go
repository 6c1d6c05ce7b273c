// Package qr renders boarding QR codes. The code carries an encrypted,
// authenticated pass so the payload cannot be forged or read by passengers.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"train-station/internal/models"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// Pass is the data encoded into a boarding QR code.
type Pass struct {
	TicketID      int64     `json:"ticket_id"`
	OrderID       int64     `json:"order_id"`
	TripID        int64     `json:"trip_id"`
	Seat          int       `json:"seat"`
	Route         string    `json:"route,omitempty"`
	DepartureTime time.Time `json:"departure_time"`
}

// NewPass builds the pass of a ticket loaded with its trip and route.
func NewPass(t *models.Ticket) Pass {
	p := Pass{TicketID: t.ID, OrderID: t.OrderID, TripID: t.TripID, Seat: t.Seat}
	if t.Trip != nil {
		p.DepartureTime = t.Trip.DepartureTime
		if t.Trip.Route != nil {
			p.Route = t.Trip.Route.Name
		}
	}
	return p
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateEncryptedQR returns a PNG QR code for the ticket.
func (q *QRGenerator) GenerateEncryptedQR(ticket *models.Ticket) ([]byte, error) {
	token, err := q.Seal(NewPass(ticket))
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, DefaultSize)
}

// Seal encrypts the pass into the URL-safe token printed in the QR code.
func (q *QRGenerator) Seal(p Pass) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	gcm, err := q.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(gcm.Seal(nonce, nonce, data, nil)), nil
}

// Open decrypts a token produced by Seal with the same secret.
func (q *QRGenerator) Open(token string) (Pass, error) {
	var p Pass
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return p, fmt.Errorf("decode token: %w", err)
	}
	gcm, err := q.aead()
	if err != nil {
		return p, err
	}
	if len(raw) < gcm.NonceSize() {
		return p, errors.New("token too short")
	}
	data, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return p, fmt.Errorf("open token: %w", err)
	}
	err = json.Unmarshal(data, &p)
	return p, err
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
