package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

// ExpandOptions contains options for archive expansion
type ExpandOptions struct {
	// MaxFileSize is the maximum size for a single file in bytes (0 = unlimited)
	MaxFileSize int64
	// MaxTotalSize is the maximum total size for all extracted files (0 = unlimited)
	MaxTotalSize int64
	// MaxFiles is the maximum number of files to extract (0 = unlimited)
	MaxFiles int
	// AllowedExtensions filters which file extensions to extract (empty = all)
	AllowedExtensions []string
	// SkipPatterns contains patterns to skip (e.g., "__MACOSX")
	SkipPatterns []string
}

// DefaultExpandOptions returns default options for catalog archives
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{
		MaxFileSize:       64 * 1024 * 1024,
		MaxTotalSize:      256 * 1024 * 1024,
		MaxFiles:          100,
		AllowedExtensions: []string{".json"},
		SkipPatterns: []string{
			"__MACOSX",
			".DS_Store",
			"Thumbs.db",
			"desktop.ini",
		},
	}
}

// ExpandedFile is one top-level file extracted from an archive
type ExpandedFile struct {
	Name    string
	Content []byte
}

// Expander reads catalog archives in memory
type Expander struct {
	options ExpandOptions
	log     zerolog.Logger
}

// NewExpander creates a new expander
func NewExpander(options ExpandOptions, log zerolog.Logger) *Expander {
	return &Expander{
		options: options,
		log:     log.With().Str("component", "archive").Logger(),
	}
}

// Expand returns the top-level files of a zip archive keyed by name.
// Nested entries are ignored.
func (e *Expander) Expand(ctx context.Context, content []byte) (map[string]ExpandedFile, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{Reason: "invalid zip archive"}
	}

	expanded := make(map[string]ExpandedFile)
	var totalSize int64
	fileCount := 0

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if file.FileInfo().IsDir() {
			continue
		}

		name, err := sanitizeFilename(file.Name)
		if err != nil {
			e.log.Warn().Str("entry", file.Name).Err(err).Msg("Skipping suspicious archive entry")
			continue
		}

		if strings.Contains(name, "/") || e.shouldSkip(name) || !e.isAllowedExtension(name) {
			continue
		}

		fileCount++
		if e.options.MaxFiles > 0 && fileCount > e.options.MaxFiles {
			return nil, &ParseError{Reason: fmt.Sprintf("too many files in archive (limit: %d)", e.options.MaxFiles)}
		}

		// Declared size is checked first, actual bytes again while reading.
		if e.options.MaxFileSize > 0 && int64(file.UncompressedSize64) > e.options.MaxFileSize {
			return nil, &ParseError{Reason: fmt.Sprintf("file %s exceeds maximum size", name)}
		}

		data, err := e.readFileWithLimit(file, name)
		if err != nil {
			return nil, err
		}

		totalSize += int64(len(data))
		if e.options.MaxTotalSize > 0 && totalSize > e.options.MaxTotalSize {
			return nil, &ParseError{Reason: "total extracted size exceeds maximum"}
		}

		expanded[name] = ExpandedFile{Name: name, Content: data}
	}

	return expanded, nil
}

func (e *Expander) readFileWithLimit(file *zip.File, name string) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("cannot open %s", name)}
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			e.log.Warn().Str("entry", name).Err(closeErr).Msg("Failed to close archive entry")
		}
	}()

	var reader io.Reader = rc
	if e.options.MaxFileSize > 0 {
		reader = io.LimitReader(rc, e.options.MaxFileSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("cannot read %s", name)}
	}
	if e.options.MaxFileSize > 0 && int64(len(data)) > e.options.MaxFileSize {
		return nil, &ParseError{Reason: fmt.Sprintf("file %s exceeds maximum size", name)}
	}
	return data, nil
}

// sanitizeFilename rejects absolute and escaping paths and normalizes separators.
func sanitizeFilename(filename string) (string, error) {
	if path.IsAbs(filename) || filepath.IsAbs(filename) {
		return "", fmt.Errorf("absolute path not allowed: %s", filename)
	}
	if len(filename) >= 2 && filename[1] == ':' {
		return "", fmt.Errorf("drive letter not allowed: %s", filename)
	}

	filename = strings.ReplaceAll(filename, "\\", "/")
	cleaned := path.Clean(filename)
	if strings.HasPrefix(cleaned, "/") {
		return "", fmt.Errorf("path traversal not allowed: %s", filename)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal not allowed: %s", filename)
		}
	}
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}
	return cleaned, nil
}

func (e *Expander) shouldSkip(filename string) bool {
	for _, pattern := range e.options.SkipPatterns {
		if strings.Contains(filename, pattern) {
			return true
		}
	}
	return false
}

func (e *Expander) isAllowedExtension(filename string) bool {
	if len(e.options.AllowedExtensions) == 0 {
		return true
	}
	ext := filepath.Ext(filename)
	for _, allowed := range e.options.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
