package output

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// CopyToken places the access token on the system clipboard.
func CopyToken(token string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	if err := clipboard.WriteAll(token); err != nil {
		return fmt.Errorf("failed to copy token to clipboard: %w", err)
	}
	return nil
}
