package audit

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
)

const fingerprintLength = 16

// Fingerprint identifies a token in logs and audit entries without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])[:fingerprintLength]
}

// DestinationHost strips everything but the host from a destination,
// so credentials in paths or query strings do not end up in the audit log.
func DestinationHost(destination string) string {
	u, err := url.Parse(destination)
	if err != nil || u.Host == "" {
		return "(unparsable)"
	}
	return u.Host
}
