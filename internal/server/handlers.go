package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kyudori/docbridge/internal/convert"
)

// ConvertRequest is the JSON body of POST /convert
type ConvertRequest struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path,omitempty"`
	ConvertTo  string `json:"convert_to,omitempty"`
}

// ConvertResponse is the JSON response of POST /convert
type ConvertResponse struct {
	Success        bool                `json:"success"`
	Message        string              `json:"message"`
	ConvertedFiles map[string][]string `json:"converted_files"`
	TotalFiles     int                 `json:"total_files"`
}

// statusResponse is the body of the unauthenticated status endpoints
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "healthy",
		Message: "File Converter API is running",
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !s.workspaces.IsAccessible() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:  "unhealthy",
			Message: "workspace storage is not accessible",
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "healthy",
		Message: "File Converter API is running",
	})
}

func (s *Server) supportedFormatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"supported_formats": convert.SupportedFormats(),
		"description":       "Key: input extension, Value: list of output extensions",
	})
}

// convertHandler converts a file or directory already on the server's
// filesystem.
func (s *Server) convertHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	inputPath, err := filepath.Abs(req.InputPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input path")
		return
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("input path not found: %s", req.InputPath))
		return
	}

	// Output directory: explicit when given, otherwise next to the input.
	var outDir string
	if req.OutputPath != "" {
		outDir, err = filepath.Abs(req.OutputPath)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid output path")
			return
		}
		if mkErr := os.MkdirAll(outDir, 0755); mkErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("cannot create output directory: %v", mkErr))
			return
		}
	} else if info.IsDir() {
		outDir = inputPath
	} else {
		outDir = filepath.Dir(inputPath)
	}

	results := make(map[string][]string)
	if info.IsDir() {
		results, err = s.converter.ConvertDirectory(ctx, inputPath, outDir)
		if err != nil {
			s.logger.ErrorContext(ctx, "directory conversion failed",
				"error", err,
				"path", inputPath,
			)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("conversion failed: %v", err))
			return
		}
	} else {
		outcome, err := s.converter.Convert(ctx, inputPath, req.ConvertTo, outDir)
		if err != nil {
			s.logger.ErrorContext(ctx, "file conversion failed",
				"error", err,
				"path", inputPath,
			)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("conversion failed: %v", err))
			return
		}
		if len(outcome.Outputs) > 0 {
			results[inputPath] = outcome.Outputs
		}
	}

	total := len(results)
	message := fmt.Sprintf("%d file(s) converted successfully.", total)
	if total == 0 {
		message = "No files were converted."
	}
	writeJSON(w, http.StatusOK, ConvertResponse{
		Success:        true,
		Message:        message,
		ConvertedFiles: results,
		TotalFiles:     total,
	})
}

// convertUploadHandler accepts a multipart upload, converts it inside a
// fresh workspace, and streams back the first produced file.
func (s *Server) convertUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' form field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.config.MaxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	filename := sanitizeFilename(header.Filename)
	if err := s.validateUpload(ctx, content, filename); err != nil {
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			writeError(w, valErr.Status, valErr.Detail)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	workspace, err := s.workspaces.Create()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to allocate workspace")
		return
	}
	defer func() {
		if rmErr := s.workspaces.Remove(workspace); rmErr != nil {
			s.logger.WarnContext(ctx, "failed to remove workspace",
				"error", rmErr,
				"workspace", workspace,
			)
		}
	}()

	inputPath := filepath.Join(workspace, filename)
	if err := os.WriteFile(inputPath, content, 0644); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	convertTo := r.FormValue("convert_to")
	outcome, err := s.converter.Convert(ctx, inputPath, convertTo, workspace)
	if err != nil {
		s.logger.ErrorContext(ctx, "upload conversion failed",
			"error", err,
			"filename", filename,
		)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("conversion failed: %v", err))
		return
	}
	if len(outcome.Outputs) == 0 {
		writeError(w, http.StatusBadRequest, "unsupported file format or conversion failed")
		return
	}

	converted := outcome.Outputs[0]
	out, err := os.Open(converted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "converted file not found")
		return
	}
	defer out.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(converted))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(converted)))
	if _, err := io.Copy(w, out); err != nil {
		s.logger.WarnContext(ctx, "failed to stream converted file",
			"error", err,
			"path", converted,
		)
	}

	s.logger.InfoContext(ctx, "upload converted",
		"filename", filename,
		"output", filepath.Base(converted),
	)
}
