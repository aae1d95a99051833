package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/farmassist/internal/metrics"
)

// InvalidFormatMessage is returned for uploads outside the allow-list.
const InvalidFormatMessage = "Invalid file format. Please upload a .wav, .mp3, or .ogg file."

// canonicalName is the converted artifact inside a workspace.
const canonicalName = "converted_output.wav"

var allowedFormats = map[string]bool{
	"wav": true,
	"mp3": true,
	"ogg": true,
}

// Workspace is the per-request directory holding the staged upload and the
// canonical audio derived from it.
type Workspace struct {
	ID            string
	Dir           string
	StagedPath    string
	CanonicalPath string
	Format        string

	once   sync.Once
	remove func(string) error
}

// Cleanup removes the canonical file, the staged file and the workspace
// directory. It is safe to call more than once; failures are logged only.
func (w *Workspace) Cleanup() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		for _, path := range []string{w.CanonicalPath, w.StagedPath, w.Dir} {
			if path == "" {
				continue
			}
			if err := w.remove(path); err != nil && !os.IsNotExist(err) {
				metrics.DefaultMetrics.CleanupErrors.Inc()
				slog.Warn("failed to remove artifact", "workspace", w.ID, "path", path, "error", err)
			}
		}
	})
}

// Stager persists uploads into request-scoped workspaces under one root.
type Stager struct {
	root     string
	newID    func() string
	mkdirAll func(path string, perm os.FileMode) error
	create   func(name string) (*os.File, error)
	remove   func(name string) error
}

func NewStager(root string) *Stager {
	return &Stager{
		root:     root,
		newID:    func() string { return uuid.NewString() },
		mkdirAll: os.MkdirAll,
		create:   os.Create,
		remove:   os.Remove,
	}
}

// Root is the upload directory.
func (s *Stager) Root() string { return s.root }

// Init creates the upload directory if absent.
func (s *Stager) Init() error {
	if err := s.mkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create upload dir %s: %w", s.root, err)
	}
	return nil
}

// Extension returns the lowercased extension of filename, validated against
// the allow-list. Names with nothing before the dot have no extension.
func Extension(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", &ValidationError{Message: "No selected file"}
	}
	base := baseName(filename)
	dotExt := filepath.Ext(base)
	ext := strings.ToLower(strings.TrimPrefix(dotExt, "."))
	// ".wav" is a hidden file with no extension, not a wav named "".
	if dotExt == base || !allowedFormats[ext] {
		return "", &ValidationError{Message: InvalidFormatMessage}
	}
	return ext, nil
}

// Stage validates filename and writes body verbatim into a new workspace.
// Nothing touches the filesystem when validation fails.
func (s *Stager) Stage(ctx context.Context, filename string, body io.Reader) (*Workspace, error) {
	ext, err := Extension(filename)
	if err != nil {
		return nil, err
	}

	ws := s.workspace(s.newID(), baseName(filename), ext)
	if err := s.mkdirAll(ws.Dir, 0o755); err != nil {
		return nil, &UnexpectedError{Err: fmt.Errorf("create workspace: %w", err)}
	}

	if err := s.write(ctx, ws.StagedPath, body); err != nil {
		ws.Cleanup()
		return nil, &UnexpectedError{Err: fmt.Errorf("stage upload: %w", err)}
	}

	slog.Debug("upload staged", "workspace", ws.ID, "path", ws.StagedPath, "format", ext)
	return ws, nil
}

// Open rebuilds a workspace staged earlier, possibly by another process
// sharing the upload directory.
func (s *Stager) Open(id, stagedName string) (*Workspace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &ValidationError{Message: "invalid workspace id"}
	}
	ext, err := Extension(stagedName)
	if err != nil {
		s.discard(id)
		return nil, err
	}
	ws := s.workspace(id, baseName(stagedName), ext)
	if _, err := os.Stat(ws.StagedPath); err != nil {
		s.discard(id)
		return nil, &UnexpectedError{Err: fmt.Errorf("open staged upload: %w", err)}
	}
	return ws, nil
}

// discard removes whatever is left of a workspace that cannot be opened.
// id must already be a parsed uuid so the path stays under root.
func (s *Stager) discard(id string) {
	dir := filepath.Join(s.root, id)
	if err := os.RemoveAll(dir); err != nil {
		metrics.DefaultMetrics.CleanupErrors.Inc()
		slog.Warn("failed to remove workspace", "workspace", id, "path", dir, "error", err)
	}
}

func (s *Stager) workspace(id, name, ext string) *Workspace {
	if name == canonicalName {
		name = "original_" + name
	}
	dir := filepath.Join(s.root, id)
	return &Workspace{
		ID:            id,
		Dir:           dir,
		StagedPath:    filepath.Join(dir, name),
		CanonicalPath: filepath.Join(dir, canonicalName),
		Format:        ext,
		remove:        s.remove,
	}
}

func (s *Stager) write(ctx context.Context, path string, body io.Reader) error {
	f, err := s.create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, readerWithContext(ctx, body)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// baseName strips any client-supplied directory components.
func baseName(filename string) string {
	return filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
