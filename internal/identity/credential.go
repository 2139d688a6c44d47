package identity

import (
	"strings"

	"github.com/google/uuid"
)

// Credential is the credential scope carried by a SigV4 Authorization
// header. Signatures are never verified.
type Credential struct {
	AccessKeyID string
	Date        string
	Region      string
	Service     string
}

// ParseAuthorization extracts the credential scope from a header of the form
//
//	AWS4-HMAC-SHA256 Credential=AKID/20240101/us-east-1/efs/aws4_request, SignedHeaders=..., Signature=...
//
// The second return value is false when the header is absent or not SigV4.
func ParseAuthorization(header string) (Credential, bool) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "AWS4-HMAC-SHA256" {
		return Credential{}, false
	}

	for _, field := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok || key != "Credential" {
			continue
		}
		parts := strings.Split(value, "/")
		if len(parts) != 5 || parts[0] == "" {
			return Credential{}, false
		}
		return Credential{
			AccessKeyID: parts[0],
			Date:        parts[1],
			Region:      parts[2],
			Service:     parts[3],
		}, true
	}
	return Credential{}, false
}

// NewResourceID returns an AWS-style identifier: prefix, a hyphen and 17
// lowercase hex digits (e.g. "sg-0f3a9c2d4b5e6f701").
func NewResourceID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + hex[:17]
}

// NewRequestID returns a request id in the format AWS uses for x-amzn-RequestId.
func NewRequestID() string {
	return uuid.NewString()
}
