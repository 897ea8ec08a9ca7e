// Package qrgen renders QR codes pointing customers at the verification page
// for a submission.
package qrgen

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// VerificationURL builds the customer verification URL for a submission.
func VerificationURL(publicURL, submissionID string) string {
	base := strings.TrimRight(publicURL, "/")
	return fmt.Sprintf("%s/verify/%s", base, strings.ToUpper(strings.TrimSpace(submissionID)))
}

// PNG encodes the verification URL as a PNG QR image. size falls back to
// DefaultSize when zero or negative.
func PNG(publicURL, submissionID string, size int) ([]byte, error) {
	if strings.TrimSpace(submissionID) == "" {
		return nil, fmt.Errorf("submission id is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(VerificationURL(publicURL, submissionID), qrcode.Medium, size)
}
