// Package identity implements credential decoding and the delegated
// authentication exchange with the cloud identity provider.
package identity

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPassword indicates a password that does not decode to a
// client-id/secret pair in any supported encoding.
var ErrInvalidPassword = errors.New("invalid provider password")

// AppPassword is the decoded provider credential: a client ID and a secret,
// each a 16-byte UUID.
type AppPassword struct {
	ClientID uuid.UUID
	Secret   uuid.UUID
}

// ParseAppPassword decodes a raw password string into an AppPassword.
//
// Client libraries format the credential differently, so several encodings
// are accepted, tried in order:
//
//  1. Strip every character that is not a hex digit. If exactly 64 digits
//     remain, they are the two UUIDs' raw bytes. This absorbs the dashed
//     concatenation of two canonical UUID strings and any separator
//     characters a client inserts.
//  2. Base64 (standard and URL-safe alphabets, padded or not) decoding to
//     exactly 32 bytes.
func ParseAppPassword(password string) (AppPassword, error) {
	if buf, ok := hexPayload(password); ok {
		return split(buf)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		buf, err := enc.DecodeString(password)
		if err == nil && len(buf) == 32 {
			return split(buf)
		}
	}
	return AppPassword{}, ErrInvalidPassword
}

// hexPayload strips non-hex characters and decodes the remainder when it is
// exactly 64 hex digits.
func hexPayload(password string) ([]byte, bool) {
	var sb strings.Builder
	for _, r := range password {
		if ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() != 64 {
		return nil, false
	}
	buf, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, false
	}
	return buf, true
}

func split(buf []byte) (AppPassword, error) {
	clientID, err := uuid.FromBytes(buf[:16])
	if err != nil {
		return AppPassword{}, ErrInvalidPassword
	}
	secret, err := uuid.FromBytes(buf[16:])
	if err != nil {
		return AppPassword{}, ErrInvalidPassword
	}
	return AppPassword{ClientID: clientID, Secret: secret}, nil
}
