package publisher

import (
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/sjson"

	"histopost/pkg/config"
)

// attachedMedia renders the feed attached_media parameter for one photo.
func attachedMedia(photoID string) (string, error) {
	out, err := sjson.Set(`[{}]`, "0.media_fbid", photoID)
	if err != nil {
		return "", fmt.Errorf("encode attached_media: %w", err)
	}
	return out, nil
}

var formatMIME = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"webp": "image/webp",
}

// sourceFile names the uploaded file after the image's own format so the
// declared MIME type matches the bytes. Unknown or empty formats fall back to
// the configured name and type.
func sourceFile(cfg config.FacebookConfig, format string) (name string, mimeType string) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	mimeType, ok := formatMIME[format]
	if !ok {
		return cfg.ImageFileName, cfg.ImageMIMEType
	}
	if mimeType == cfg.ImageMIMEType {
		return cfg.ImageFileName, mimeType
	}

	base := strings.TrimSuffix(cfg.ImageFileName, path.Ext(cfg.ImageFileName))
	if base == "" {
		base = "image"
	}
	return base + "." + format, mimeType
}
