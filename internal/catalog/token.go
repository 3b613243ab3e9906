package catalog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewQRToken mints a branch QR token of the form QR-<timestamp>-<hex>.
// The millisecond timestamp makes rotation order visible in logs; the hex
// suffix carries the entropy.
func NewQRToken() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("QR-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
