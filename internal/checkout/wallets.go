package checkout

import (
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"sg-checkout/internal/models"
)

// CashAppLink builds the cash.app payment link for a cashtag. The tag may be
// given with or without its leading "$".
func CashAppLink(tag string, checkout models.CheckoutContext) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "$")
	if tag == "" {
		return ""
	}
	return fmt.Sprintf("https://cash.app/$%s/%s", tag, checkout.Amount())
}

// CashAppQRCode renders a link as a PNG data URI for desktop browsers
func CashAppQRCode(link string, size int) (string, error) {
	if link == "" {
		return "", nil
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// PayPalButton configures the PayPal smart button. The button itself is
// rendered and settled by the PayPal SDK in the browser.
type PayPalButton struct {
	ClientID string
	Amount   string
	Currency string
	Enabled  bool
}

// SDKURL is the script URL for the PayPal JS SDK
func (b PayPalButton) SDKURL() string {
	if !b.Enabled {
		return ""
	}
	return fmt.Sprintf("https://www.paypal.com/sdk/js?client-id=%s&currency=%s", b.ClientID, strings.ToUpper(b.Currency))
}

// NewPayPalButton returns the button config for a paid checkout
func NewPayPalButton(clientID string, checkout models.CheckoutContext) PayPalButton {
	return PayPalButton{
		ClientID: clientID,
		Amount:   checkout.Amount(),
		Currency: strings.ToUpper(checkout.Currency),
		Enabled:  clientID != "" && !checkout.IsFree(),
	}
}
