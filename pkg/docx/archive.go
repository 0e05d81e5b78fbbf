package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// archiveTime is stamped on every archive entry so identical working copies
// produce identical packages.
var archiveTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// DocxReader handles reading a DOCX package from memory
type DocxReader struct {
	reader *zip.Reader
	Parts  map[string]*zip.File
}

// NewDocxReader creates a new DOCX reader
func NewDocxReader(r io.ReaderAt, size int64) (*DocxReader, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip file: %w", err)
	}

	dr := &DocxReader{
		reader: zipReader,
		Parts:  make(map[string]*zip.File),
	}

	// Index all parts by name
	for _, file := range zipReader.File {
		if strings.HasSuffix(file.Name, "/") {
			continue
		}
		dr.Parts[file.Name] = file
	}

	// Check if this is a valid DOCX file by looking for required parts
	if _, ok := dr.Parts[DocumentPart]; !ok {
		return nil, fmt.Errorf("not a valid DOCX file: missing %s", DocumentPart)
	}

	return dr, nil
}

// DocxReaderFromFile creates a DocxReader from a file on fs
func DocxReaderFromFile(fs afero.Fs, name string) (*DocxReader, error) {
	content, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return NewDocxReader(bytes.NewReader(content), int64(len(content)))
}

// GetPart retrieves the content of a specific part
func (dr *DocxReader) GetPart(partName string) ([]byte, error) {
	file, ok := dr.Parts[partName]
	if !ok {
		return nil, fmt.Errorf("part %s not found", partName)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", partName, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", partName, err)
	}

	return content, nil
}

// ListParts returns the names of all parts in lexical order
func (dr *DocxReader) ListParts() []string {
	parts := make([]string, 0, len(dr.Parts))
	for name := range dr.Parts {
		parts = append(parts, name)
	}
	sort.Strings(parts)
	return parts
}

// Extract writes every part below dir on fs.
func (dr *DocxReader) Extract(fs afero.Fs, dir string) error {
	for _, name := range dr.ListParts() {
		clean := path.Clean(name)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("refusing to extract part outside the package: %s", name)
		}

		content, err := dr.GetPart(name)
		if err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(clean))
		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := afero.WriteFile(fs, target, content, 0o644); err != nil {
			return fmt.Errorf("failed to write part %s: %w", name, err)
		}
	}
	return nil
}

// writeArchive zips the files below dir into w. Entry names are relative
// to dir; [Content_Types].xml goes first, the rest in lexical order.
func writeArchive(fs afero.Fs, dir string, w io.Writer) error {
	var names []string
	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(names, func(i, j int) bool {
		if names[i] == ContentTypesPart || names[j] == ContentTypesPart {
			return names[i] == ContentTypesPart
		}
		return names[i] < names[j]
	})

	zw := zip.NewWriter(w)
	for _, name := range names {
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveTime,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if err := copyFileTo(fs, filepath.Join(dir, filepath.FromSlash(name)), entry); err != nil {
			return err
		}
	}
	return zw.Close()
}

func copyFileTo(fs afero.Fs, name string, w io.Writer) error {
	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return nil
}
