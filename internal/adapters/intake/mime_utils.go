package intake

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// extractTextFromMessage extracts readable body text from a notification
// email. Platform notifications are frequently HTML-only multiparts, so when
// no text/plain part exists the first text/html part is returned instead; the
// caller strips the markup.
func extractTextFromMessage(msg *mail.Message) (string, bool, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return "", false, err
		}
		isHTML := strings.Contains(strings.ToLower(contentType), "text/html")
		return body, isHTML, nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		body, err := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		return body, false, err
	}

	mr := multipart.NewReader(msg.Body, boundary)

	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		partType := strings.ToLower(part.Header.Get("Content-Type"))
		encoding := part.Header.Get("Content-Transfer-Encoding")

		switch {
		case strings.Contains(partType, "text/plain"):
			text, err := decodePart(part, encoding)
			if err != nil {
				continue
			}
			return text, false, nil
		case strings.Contains(partType, "text/html") && htmlFallback == "":
			text, err := decodePart(part, encoding)
			if err != nil {
				continue
			}
			htmlFallback = text
		}
		// Attachments and nested multiparts are skipped
	}

	if htmlFallback != "" {
		return htmlFallback, true, nil
	}
	return "", false, nil
}

// decodePart reads a body applying its content transfer encoding
func decodePart(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeEncodedHeader decodes an RFC 2047 encoded-word header value
func decodeEncodedHeader(value string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
