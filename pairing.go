package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const pairQRSize = 256

// PairURL is the address a headset browser opens to join sid.
func PairURL(publicURL, sid, token string) string {
	q := url.Values{}
	q.Set("sid", sid)
	q.Set("token", token)
	return strings.TrimRight(publicURL, "/") + "/?" + q.Encode()
}

// PairingQR renders content as a PNG QR code.
func PairingQR(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = pairQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding pairing QR: %w", err)
	}
	return png, nil
}
