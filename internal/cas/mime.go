package cas

import "strings"

// DefaultContentType is used when nothing better is known.
const DefaultContentType = "application/octet-stream"

var extensionByType = map[string]string{
	"text/html":                "html",
	"text/plain":               "txt",
	"application/json":         "json",
	"text/css":                 "css",
	"application/javascript":   "js",
	"text/javascript":          "js",
	"text/markdown":            "md",
	"text/csv":                 "csv",
	"application/xml":          "xml",
	"text/xml":                 "xml",
	"image/svg+xml":            "svg",
	"image/png":                "png",
	"image/jpeg":               "jpg",
	"image/gif":                "gif",
	"application/pdf":          "pdf",
	"application/octet-stream": "bin",
}

var typeByExtension = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"txt":  "text/plain",
	"json": "application/json",
	"css":  "text/css",
	"js":   "application/javascript",
	"md":   "text/markdown",
	"csv":  "text/csv",
	"xml":  "application/xml",
	"svg":  "image/svg+xml",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
	"bin":  "application/octet-stream",
}

// ExtensionFor maps a content type to its file extension, ignoring any
// parameters. Unknown types yield "".
func ExtensionFor(contentType string) string {
	return extensionByType[mediaType(contentType)]
}

// ContentTypeFor maps an extension (without the dot) to a content type.
func ContentTypeFor(ext string) (string, bool) {
	ct, ok := typeByExtension[strings.ToLower(ext)]
	return ct, ok
}

// PathFor returns "/{address}" plus the extension derived from contentType.
func PathFor(address, contentType string) string {
	if ext := ExtensionFor(contentType); ext != "" {
		return "/" + address + "." + ext
	}
	return "/" + address
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
