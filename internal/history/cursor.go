package history

import (
	"encoding/base64"
	"fmt"
)

// Cursors are opaque to callers: base64url of an index position (listings)
// or of a key (snapshots).

func encodeCursor(pos []byte) string {
	return base64.RawURLEncoding.EncodeToString(pos)
}

func decodeCursor(c string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("%w: malformed cursor %q", ErrInvalidArgument, c)
	}
	return b, nil
}
