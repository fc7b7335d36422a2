package upload

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxFileSize is 5 MiB. A file of exactly this size is accepted.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// File is an upload candidate held fully in memory.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

func (f *File) size() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Data))
}

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

var dangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".pif", ".scr", ".msi", ".dll",
	".vbs", ".vbe", ".js", ".jse", ".wsf", ".wsh", ".ps1", ".sh",
	".jar", ".php", ".phtml", ".asp", ".aspx", ".jsp", ".cgi", ".pl", ".py",
	".html", ".htm", ".svg", ".hta",
}

// Validate checks f against the upload rules in order and returns the first
// violation as an *Error. The declared content type and the sniffed content
// are checked independently and not compared with each other.
func Validate(f *File, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	if f == nil || f.size() == 0 {
		return newError(CodeNoFile, "No file provided", nil)
	}

	contentType := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		return newError(CodeInvalidFileType, "Invalid file type. Only JPEG and PNG images are allowed.", nil)
	}

	if f.size() > maxSize {
		return newError(CodeFileTooLarge,
			fmt.Sprintf("File too large. Maximum size: %.1fMB", float64(maxSize)/1024/1024), nil)
	}

	name := strings.ToLower(strings.TrimSpace(f.Name))
	for _, ext := range dangerousExtensions {
		if strings.HasSuffix(name, ext) {
			return newError(CodeDangerousExtension, "File extension "+ext+" is not allowed", nil)
		}
	}

	if !isImage(Sniff(f.Data)) {
		return newError(CodeInvalidSignature, "File content is not a valid JPEG or PNG image", nil)
	}

	return nil
}

// Sniff detects the content type from the leading bytes of data.
func Sniff(data []byte) *mimetype.MIME {
	return mimetype.Detect(data)
}

func isImage(m *mimetype.MIME) bool {
	return m.Is("image/jpeg") || m.Is("image/png")
}

// Extension returns the object key extension for f, based on its content.
func Extension(f *File) string {
	if Sniff(f.Data).Is("image/png") {
		return "png"
	}
	return "jpg"
}
