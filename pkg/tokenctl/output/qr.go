package output

import (
	"io"

	"github.com/mdp/qrterminal/v3"
)

// WriteQR draws content as a half block QR code, small enough for an
// 80 column terminal with typical verification URLs.
func WriteQR(w io.Writer, content string) {
	if content == "" {
		return
	}
	qrterminal.GenerateHalfBlock(content, qrterminal.L, w)
}
