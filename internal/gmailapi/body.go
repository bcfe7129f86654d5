package gmailapi

import (
	"encoding/base64"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// maxPartDepth bounds the multipart tree walk. Real mail rarely nests
// past three or four levels; anything deeper is malformed.
const maxPartDepth = 32

// extractBody pulls the plain-text body out of a message payload. A
// single-part body wins; otherwise the tree is walked depth-first in
// document order and the first text/plain leaf is used.
func extractBody(payload *gmail.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	return findPlainText(payload.Parts, 0)
}

func findPlainText(parts []*gmail.MessagePart, depth int) string {
	if depth >= maxPartDepth {
		return ""
	}
	for _, part := range parts {
		if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
		if len(part.Parts) > 0 {
			if body := findPlainText(part.Parts, depth+1); body != "" {
				return body
			}
		}
	}
	return ""
}

// decodeBody decodes a body payload. Gmail uses URL-safe base64, but
// some senders produce standard encoding, so both are tried.
func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}
