package docx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Fixed part paths inside a document package.
const (
	DocumentPart      = "word/document.xml"
	FooterPart        = "word/footer1.xml"
	RelationshipsPart = "word/_rels/document.xml.rels"
	MediaDir          = "word/media"
	ContentTypesPart  = "[Content_Types].xml"
)

// WorkspaceOptions configures a Workspace.
type WorkspaceOptions struct {
	// Template is the immutable template: an unpacked package directory or
	// a .docx file.
	Template string
	// Dir is the working copy the run mutates.
	Dir string
	// Output is the final document path, usually ending in .docx.
	Output string
	Logger zerolog.Logger
}

// Workspace owns the on-disk working copy of one report run.
type Workspace struct {
	fs       afero.Fs
	template string
	dir      string
	output   string
	log      zerolog.Logger
}

// NewWorkspace creates a workspace on fs. Nothing is touched until Prepare.
func NewWorkspace(fs afero.Fs, opts WorkspaceOptions) (*Workspace, error) {
	if opts.Template == "" || opts.Dir == "" || opts.Output == "" {
		return nil, errors.New("workspace needs template, working directory and output paths")
	}
	if err := CheckLayout(opts.Template, opts.Dir, opts.Output); err != nil {
		return nil, err
	}
	return &Workspace{
		fs:       fs,
		template: opts.Template,
		dir:      opts.Dir,
		output:   opts.Output,
		log:      opts.Logger,
	}, nil
}

// CheckLayout rejects path layouts in which preparing or finalizing a run
// would touch the template. The output may live inside the working directory.
func CheckLayout(template, dir, output string) error {
	template, dir, output = absPath(template), absPath(dir), absPath(output)
	switch {
	case within(template, dir):
		return fmt.Errorf("working directory %s must not be or lie inside the template %s", dir, template)
	case within(dir, template):
		return fmt.Errorf("template %s must not lie inside the working directory %s", template, dir)
	case within(template, output):
		return fmt.Errorf("output %s must not be or lie inside the template %s", output, template)
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// within reports whether p is parent itself or a path below it.
func within(parent, p string) bool {
	rel, err := filepath.Rel(parent, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Fs returns the filesystem the workspace lives on.
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Dir returns the working copy directory.
func (w *Workspace) Dir() string { return w.dir }

// Output returns the final document path.
func (w *Workspace) Output() string { return w.output }

// Path returns the location of a package part inside the working copy.
func (w *Workspace) Path(part string) string {
	return filepath.Join(w.dir, filepath.FromSlash(part))
}

// Prepare discards any stale working copy and final document, then
// materializes a fresh working copy from the template.
func (w *Workspace) Prepare() error {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		return NewDocumentError("prepare", w.dir, err)
	}
	if err := w.fs.Remove(w.output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewDocumentError("prepare", w.output, err)
	}

	info, err := w.fs.Stat(w.template)
	if err != nil {
		return NewDocumentError("prepare", w.template, err)
	}

	if info.IsDir() {
		err = w.copyTemplateDir()
	} else {
		err = w.extractTemplate()
	}
	if err != nil {
		return NewDocumentError("prepare", w.template, err)
	}

	w.log.Debug().Str("template", w.template).Str("dir", w.dir).Msg("working copy prepared")
	return nil
}

func (w *Workspace) copyTemplateDir() error {
	return afero.Walk(w.fs, w.template, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.template, p)
		if err != nil {
			return err
		}
		target := filepath.Join(w.dir, rel)
		if info.IsDir() {
			return w.fs.MkdirAll(target, 0o755)
		}
		return w.copyFile(p, target, info.Mode().Perm())
	})
}

func (w *Workspace) copyFile(src, dst string, perm os.FileMode) error {
	in, err := w.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := w.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (w *Workspace) extractTemplate() error {
	reader, err := DocxReaderFromFile(w.fs, w.template)
	if err != nil {
		return err
	}
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	return reader.Extract(w.fs, w.dir)
}

// Finalize archives the contents of the working copy and renames the
// archive to the output path. The output name only appears once the
// archive is complete.
func (w *Workspace) Finalize() error {
	archive := w.archivePath()

	var buf bytes.Buffer
	if err := writeArchive(w.fs, w.dir, &buf); err != nil {
		return NewDocumentError("finalize", w.dir, err)
	}

	if dir := filepath.Dir(w.output); dir != "" {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return NewDocumentError("finalize", dir, err)
		}
	}
	if err := afero.WriteFile(w.fs, archive, buf.Bytes(), 0o644); err != nil {
		w.fs.Remove(archive)
		return NewDocumentError("finalize", archive, err)
	}
	if err := w.fs.Rename(archive, w.output); err != nil {
		w.fs.Remove(archive)
		return NewDocumentError("finalize", w.output, err)
	}

	w.log.Info().Str("output", w.output).Int("bytes", buf.Len()).Msg("document package written")
	return nil
}

// archivePath is the intermediate .zip next to the output.
func (w *Workspace) archivePath() string {
	stem := strings.TrimSuffix(w.output, filepath.Ext(w.output))
	archive := stem + ".zip"
	if archive == w.output {
		archive = w.output + ".partial"
	}
	return archive
}

// Cleanup deletes the working copy.
func (w *Workspace) Cleanup() error {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		return NewDocumentError("cleanup", w.dir, err)
	}
	return nil
}

// String describes the workspace for logs and errors.
func (w *Workspace) String() string {
	return fmt.Sprintf("workspace(%s -> %s)", w.template, w.output)
}
