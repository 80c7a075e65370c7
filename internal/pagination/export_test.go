package pagination

import "encoding/base64"

func EncodeCursorRaw(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}
