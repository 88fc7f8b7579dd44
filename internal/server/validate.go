package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// allowedExtensions is the upload extension allowlist.
var allowedExtensions = map[string]bool{
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
	".hwp":  true,
	".mht":  true,
	".rtf":  true,
	".odt":  true,
}

// allowedMIMETypes is the set of content types an upload may sniff as.
// Sniffing is advisory: unknown types are logged, not rejected, since the
// office containers often detect as generic archives or octet streams.
var allowedMIMETypes = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/x-hwp":                        true,
	"message/rfc822":                           true,
	"application/rtf":                          true,
	"application/vnd.oasis.opendocument.text":  true,
	"application/zip":                          true,
	"text/plain":                               true,
	"text/plain; charset=utf-8":                true,
	"application/octet-stream":                 true,
}

// ValidationError carries the HTTP status an invalid upload maps to
type ValidationError struct {
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// validateUpload checks size and extension, then sniffs the content type as
// a warn-only heuristic.
func (s *Server) validateUpload(ctx context.Context, content []byte, filename string) error {
	if int64(len(content)) > s.config.MaxUploadSize {
		return &ValidationError{
			Status: http.StatusRequestEntityTooLarge,
			Detail: fmt.Sprintf("File too large. Maximum size: %dMB", s.config.MaxUploadSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return &ValidationError{
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("File extension '%s' not allowed.", ext),
		}
	}

	sniffed := http.DetectContentType(content)
	if !allowedMIMETypes[sniffed] {
		s.logger.WarnContext(ctx, "potentially unsupported content type",
			"filename", filename,
			"content_type", sniffed,
		)
	}

	return nil
}

// sanitizeFilename strips any path component from a client-supplied name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
