package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// DepositInstructions tell a user how to fund their escrow balance.
type DepositInstructions struct {
	To      string `json:"to"`
	Memo    string `json:"memo"`
	URI     string `json:"uri"`
	QRImage string `json:"qr_image"`
}

// QRService renders deposit instructions as a scannable transfer request.
type QRService struct {
	engine *Engine
	size   int
}

func NewQRService(engine *Engine) *QRService {
	return &QRService{engine: engine, size: 256}
}

// DepositInstructions builds the transfer request for a registered user.
func (s *QRService) DepositInstructions(account string) (*DepositInstructions, error) {
	if _, err := s.engine.User(account); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("to", s.engine.custodyAccount)
	q.Set("memo", account)
	uri := "seeds:transfer?" + q.Encode()

	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode deposit qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(s.size)); err != nil {
		return nil, err
	}

	return &DepositInstructions{
		To:      s.engine.custodyAccount,
		Memo:    account,
		URI:     uri,
		QRImage: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
