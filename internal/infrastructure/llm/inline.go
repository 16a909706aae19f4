package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
)

// MaxInlineBytes caps how much of a stored object is read back for providers
// that need the bytes in the request body.
const MaxInlineBytes = 20 << 20

// ReadObject loads a stored object for inlining.
func ReadObject(ctx context.Context, reader ports.ObjectReader, object domain.StoredObject) ([]byte, error) {
	if reader == nil {
		return nil, fmt.Errorf("read object %s: no object reader configured", object.Key)
	}
	rc, err := reader.Open(ctx, object.Key)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", object.Key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxInlineBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", object.Key, err)
	}
	if len(data) > MaxInlineBytes {
		return nil, fmt.Errorf("read object %s: larger than %d bytes", object.Key, MaxInlineBytes)
	}
	return data, nil
}

func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// IsRemoteURI reports whether an upstream service can fetch the URI itself.
func IsRemoteURI(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}
