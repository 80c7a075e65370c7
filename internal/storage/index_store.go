package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/vectorindex"
)

const (
	indexExt         = ".idx"
	indexContentType = "application/json"
	s3IndexPrefix    = "indexes/"
)

// FileIndexStore keeps one serialized index per source in a local directory
type FileIndexStore struct {
	dir string
}

// NewFileIndexStore creates the directory if needed.
func NewFileIndexStore(dir string) (*FileIndexStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &FileIndexStore{dir: dir}, nil
}

// Path returns the file an index for sourceID is stored in.
func (s *FileIndexStore) Path(sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID))
	name := sanitizeID(sourceID) + "-" + hex.EncodeToString(sum[:6]) + indexExt
	return filepath.Join(s.dir, name)
}

// Save writes the index to a temp file and renames it into place, so a
// reader never sees a partial index.
func (s *FileIndexStore) Save(_ context.Context, idx *vectorindex.Index) error {
	data, err := vectorindex.Encode(idx)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(idx.SourceID)); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// Load reads the index for sourceID
func (s *FileIndexStore) Load(_ context.Context, sourceID string) (*vectorindex.Index, error) {
	data, err := os.ReadFile(s.Path(sourceID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	return vectorindex.Decode(data)
}

// Delete removes the index for sourceID
func (s *FileIndexStore) Delete(_ context.Context, sourceID string) error {
	if err := os.Remove(s.Path(sourceID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrIndexNotFound
		}
		return fmt.Errorf("remove index: %w", err)
	}
	return nil
}

// sanitizeID keeps ids readable in file names. The hash suffix in Path keeps
// distinct ids apart after sanitizing.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return "source"
	}
	return b.String()
}

// S3IndexStore keeps one serialized index per source as an object
type S3IndexStore struct {
	client *S3Client
}

// NewS3IndexStore creates a new S3IndexStore instance
func NewS3IndexStore(client *S3Client) *S3IndexStore {
	return &S3IndexStore{client: client}
}

// Key returns the object key for sourceID.
func (s *S3IndexStore) Key(sourceID string) string {
	return s3IndexPrefix + sourceID + indexExt
}

// Save uploads the index, replacing any previous object
func (s *S3IndexStore) Save(ctx context.Context, idx *vectorindex.Index) error {
	data, err := vectorindex.Encode(idx)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, s.Key(idx.SourceID), data, indexContentType)
}

// Load downloads the index for sourceID
func (s *S3IndexStore) Load(ctx context.Context, sourceID string) (*vectorindex.Index, error) {
	data, err := s.client.GetObject(ctx, s.Key(sourceID))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, err
	}
	return vectorindex.Decode(data)
}

// Delete removes the index object for sourceID
func (s *S3IndexStore) Delete(ctx context.Context, sourceID string) error {
	key := s.Key(sourceID)
	if _, err := s.client.HeadObject(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return domain.ErrIndexNotFound
		}
		return err
	}
	return s.client.DeleteObject(ctx, key)
}
