package command

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/document"
)

// MaxImageBytes caps decoded image payloads.
const MaxImageBytes = 10 << 20 // 10 MB

var imageMIMEs = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

func (e *Executor) insertImage(sel document.Range, uri string) error {
	if _, _, err := DecodeImageDataURI(uri); err != nil {
		return fmt.Errorf("command: insert image: %w", err)
	}
	img := document.NewElement("img", []document.Attr{{Key: "src", Val: uri}})
	return e.replace(sel, []*document.Node{img})
}

// DecodeImageDataURI parses a data:image/<type>;base64,<data> URI and checks
// the payload against its declared type.
func DecodeImageDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI: %w", apperr.ErrInvalidArgument)
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("invalid data URI: missing comma separator: %w", apperr.ErrInvalidArgument)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("only base64 data URIs are supported: %w", apperr.ErrInvalidArgument)
	}
	mime = strings.ToLower(strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0])
	if !imageMIMEs[mime] {
		return "", nil, fmt.Errorf("unsupported image type %q: %w", mime, apperr.ErrInvalidArgument)
	}

	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return "", nil, fmt.Errorf("invalid base64 data: %v: %w", err, apperr.ErrInvalidArgument)
		}
	}
	if err := checkImage(mime, data); err != nil {
		return "", nil, err
	}
	return mime, data, nil
}

// EncodeImageDataURI validates raw image bytes and returns them as a data URI.
// An empty mime is detected from the content.
func EncodeImageDataURI(mime string, data []byte) (string, error) {
	if mime == "" {
		mime = detectImage(data)
	}
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	if !imageMIMEs[mime] {
		return "", fmt.Errorf("unsupported image type %q: %w", mime, apperr.ErrInvalidArgument)
	}
	if err := checkImage(mime, data); err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func checkImage(mime string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image: %w", apperr.ErrInvalidArgument)
	}
	if len(data) > MaxImageBytes {
		return fmt.Errorf("image too large: %d bytes (max %d): %w", len(data), MaxImageBytes, apperr.ErrInvalidArgument)
	}
	if got := detectImage(data); got != mime {
		return fmt.Errorf("content does not match %s: %w", mime, apperr.ErrInvalidArgument)
	}
	return nil
}

// detectImage sniffs the image type, including SVG which the stdlib sniffer
// reports as text.
func detectImage(data []byte) string {
	prefix := data
	if len(prefix) > 1024 {
		prefix = prefix[:1024]
	}
	if bytes.Contains(prefix, []byte("<svg")) {
		return "image/svg+xml"
	}
	return strings.Split(http.DetectContentType(data), ";")[0]
}
