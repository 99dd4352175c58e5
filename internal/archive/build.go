package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zip"
)

// Build writes a zip archive with one JSON file per entry of files. Names
// are written in sorted order so equal input gives equal bytes.
func Build(files map[string]any) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
		if err := json.NewEncoder(f).Encode(files[name]); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return buf.Bytes(), nil
}
