// Package blob stores task attachments and hands out their URLs.
package blob

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nhle/taskbuddy/internal/model"
)

// Prefix is the directory every attachment key lives under.
const Prefix = "task-attachments"

// Store writes attachment content to an afero filesystem.
type Store struct {
	fs      afero.Fs
	baseURL string
	now     func() time.Time
}

// New returns a Store over fs. URLs are baseURL joined with the key.
func New(fs afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// NewDir returns a Store rooted at an on-disk directory.
func NewDir(dir, baseURL string) (*Store, error) {
	if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachments dir %s: %w", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

// FS exposes the underlying filesystem for serving.
func (s *Store) FS() afero.Fs { return s.fs }

// Upload writes one file and returns its attachment record.
func (s *Store) Upload(ctx context.Context, f model.FileUpload) (model.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return model.Attachment{}, err
	}
	name := cleanName(f.Name)
	if name == "" {
		return model.Attachment{}, fmt.Errorf("uploading attachment: empty file name")
	}

	key := path.Join(Prefix, fmt.Sprintf("%d_%s_%s", s.now().UnixMilli(), uuid.NewString(), name))

	if err := s.fs.MkdirAll(fsPath(Prefix), 0o755); err != nil {
		return model.Attachment{}, fmt.Errorf("creating %s: %w", Prefix, err)
	}
	if err := afero.WriteFile(s.fs, fsPath(key), f.Data, 0o644); err != nil {
		return model.Attachment{}, fmt.Errorf("writing attachment %s: %w", key, err)
	}
	return model.Attachment{Name: name, URL: s.baseURL + "/" + key}, nil
}

// UploadAll uploads files in order. On failure the files already written
// are removed.
func (s *Store) UploadAll(ctx context.Context, files []model.FileUpload) ([]model.Attachment, error) {
	out := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		a, err := s.Upload(ctx, f)
		if err != nil {
			for _, done := range out {
				_ = s.Remove(done)
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Remove deletes the content behind an attachment URL.
func (s *Store) Remove(a model.Attachment) error {
	key, ok := s.Key(a.URL)
	if !ok {
		return fmt.Errorf("attachment %s is not stored here", a.URL)
	}
	if err := s.fs.Remove(fsPath(key)); err != nil {
		return fmt.Errorf("removing attachment %s: %w", key, err)
	}
	return nil
}

// Key maps a URL issued by this store back to its key.
func (s *Store) Key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, Prefix+"/") {
		return "", false
	}
	return key, true
}

// Read returns the content stored under key.
func (s *Store) Read(key string) ([]byte, error) {
	b, err := afero.ReadFile(s.fs, fsPath(key))
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", key, err)
	}
	return b, nil
}

// fsPath roots a key so every afero backend resolves it the same way;
// this is also the path the HTTP file server asks for.
func fsPath(key string) string {
	return path.Clean("/" + key)
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.TrimSpace(name)
}
