package helpers

import "strings"

// Content types of the files a build emits. Object stores serve assets with
// this type, so source maps and text assets get explicit entries.
var assetContentTypes = map[string]string{
	".cjs":  "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".gif":  "image/gif",
	".html": "text/html; charset=utf-8",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".map":  "application/json",
	".mjs":  "text/javascript; charset=utf-8",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".txt":  "text/plain; charset=utf-8",
	".wasm": "application/wasm",
	".webp": "image/webp",
}

const defaultContentType = "application/octet-stream"

// "mime.TypeByExtension" depends on the host's mime tables, which would make
// uploads differ between machines.
func MimeTypeByExtension(ext string) string {
	if contentType, ok := assetContentTypes[strings.ToLower(ext)]; ok {
		return contentType
	}
	return defaultContentType
}
