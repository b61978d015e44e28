package files

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLength matches the header size mimetype inspects by default.
const sniffLength = 3072

const binaryContentType = "application/octet-stream"

// parseContentType normalizes a declared Content-Type header.
func parseContentType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("content type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("content type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}

func allowed(list []string, contentType string) bool {
	for _, candidate := range list {
		if candidate == contentType {
			return true
		}
	}
	return false
}

// sniff reads the head of body and reports the detected type together with
// a reader that replays the consumed bytes.
func sniff(body io.Reader) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, err
	}
	head = head[:n]
	return mimetype.Detect(head), io.MultiReader(bytes.NewReader(head), body), nil
}

// matchesDeclared checks sniffed content against the declared type. Drawing
// formats (dxf, dwg) arrive as octet-stream and are not sniffed.
func matchesDeclared(detected *mimetype.MIME, declared string) bool {
	if declared == binaryContentType {
		return true
	}
	return detected.Is(declared)
}

func describe(list []string) string {
	switch len(list) {
	case 0:
		return "the approved content types"
	case 1:
		return list[0]
	default:
		return strings.Join(list[:len(list)-1], ", ") + " or " + list[len(list)-1]
	}
}
