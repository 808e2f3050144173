package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode reads the payload segment of a compact three-part credential.
//
// The signature is never checked. The result is only good for deciding what
// the console shows; the backend still authorizes every protected call.
func Decode(raw string) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, ErrMalformed
	}

	seg, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	var body payload
	if err := json.Unmarshal(seg, &body); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(string(body.Role)) == "" {
		return nil, ErrMissingRole
	}
	return &Claims{
		Role:      body.Role,
		Subject:   subject(body.Sub),
		ExpiresAt: expiry(body.Exp),
	}, nil
}

// subject accepts a string or a bare number.
func subject(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// expiry accepts NumericDate seconds or an RFC 3339 string.
func expiry(raw json.RawMessage) *jwt.NumericDate {
	if len(raw) == 0 {
		return nil
	}
	var d jwt.NumericDate
	if err := json.Unmarshal(raw, &d); err == nil {
		return &d
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return jwt.NewNumericDate(t)
}

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// decodeSegment accepts base64url (the compact encoding) and falls back to
// the standard alphabet, padded or not.
func decodeSegment(seg string) ([]byte, error) {
	b, err := segmentParser.DecodeSegment(seg)
	if err == nil {
		return b, nil
	}
	if b, stdErr := base64.StdEncoding.DecodeString(seg); stdErr == nil {
		return b, nil
	}
	if b, stdErr := base64.RawStdEncoding.DecodeString(seg); stdErr == nil {
		return b, nil
	}
	return nil, err
}
