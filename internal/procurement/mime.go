package procurement

import (
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
)

func init() {
	ensureMimeType(".dwg", "image/vnd.dwg")
	ensureMimeType(".step", "model/step")
	ensureMimeType(".msg", "application/vnd.ms-outlook")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Warn("procurement: failed to register MIME type", slog.String("ext", ext), slog.Any("error", err))
	}
}

// contentTypeFor guesses the media type from the file extension.
func contentTypeFor(name string) string {
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if typ == "" {
		return "application/octet-stream"
	}
	return typ
}

// inferType picks an attachment type when the caller gave none.
func inferType(contentType string) AttachmentType {
	if strings.HasPrefix(contentType, "image/") {
		return TypeImage
	}
	return TypeDocument
}
