package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/blob"
)

const (
	Scheme = "file"

	metaSuffix = ".meta.json"
)

type Option func(*Repository)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// Repository is a blob store on the local filesystem. Each container is a
// directory under basePath; user metadata and the content type live in a
// JSON sidecar next to the object.
type Repository struct {
	basePath string
	logger   *zap.Logger
}

type meta struct {
	ContentType string            `json:"contentType"`
	ETag        string            `json:"etag"`
	Metadata    map[string]string `json:"metadata"`
}

func New(basePath string, opts ...Option) *Repository {
	r := &Repository{
		basePath: basePath,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Scheme() string {
	return Scheme
}

// path resolves an object inside basePath. Containers are single path
// elements and keys may not climb out of their container.
func (r *Repository) path(container, key string) (string, error) {
	if container == "" || container == "." || container == ".." ||
		strings.ContainsAny(container, `/\`) {
		return "", fmt.Errorf("invalid container %q", container)
	}

	root := filepath.Join(r.basePath, container)
	if !strings.HasPrefix(root, filepath.Clean(r.basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("container %q escapes %q", container, r.basePath)
	}
	full := filepath.Join(root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes container %q", key, container)
	}
	return full, nil
}

func (r *Repository) Put(ctx context.Context, container, key string, body io.Reader, contentType string, metadata map[string]string) error {
	fullPath, err := r.path(container, key)
	if err != nil {
		return err
	}
	r.logger.Info("writing file", zap.String("path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	h := md5.New()
	if _, err := io.Copy(file, io.TeeReader(body, h)); err != nil {
		return err
	}

	bs, err := json.Marshal(meta{
		ContentType: contentType,
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(fullPath+metaSuffix, bs, 0644)
}

func (r *Repository) Head(ctx context.Context, container, key string) (blob.Attributes, error) {
	fail := func(kind blob.Kind, err error) (blob.Attributes, error) {
		return blob.Attributes{}, &blob.Error{Kind: kind, Container: container, Key: key, Err: err}
	}

	fullPath, err := r.path(container, key)
	if err != nil {
		return fail(blob.KindAccessDenied, err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return fail(classify(err), err)
	}
	if info.IsDir() {
		return fail(blob.KindNotFound, fmt.Errorf("%s is a directory", fullPath))
	}

	var m meta
	bs, err := os.ReadFile(fullPath + metaSuffix)
	switch {
	case err == nil:
		if err := json.Unmarshal(bs, &m); err != nil {
			return fail(blob.KindTransient, fmt.Errorf("decoding %s: %w", fullPath+metaSuffix, err))
		}
	case errors.Is(err, os.ErrNotExist):
		r.logger.Debug("no metadata sidecar", zap.String("path", fullPath))
	default:
		return fail(classify(err), err)
	}

	if m.ETag == "" {
		if m.ETag, err = fileMD5(fullPath); err != nil {
			return fail(classify(err), err)
		}
	}
	if m.ContentType == "" {
		m.ContentType = mime.TypeByExtension(filepath.Ext(fullPath))
	}

	return blob.Attributes{
		Container:    container,
		Key:          key,
		Size:         info.Size(),
		ETag:         m.ETag,
		ContentType:  m.ContentType,
		LastModified: info.ModTime(),
		Metadata:     m.Metadata,
	}, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func classify(err error) blob.Kind {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return blob.KindNotFound
	case errors.Is(err, os.ErrPermission):
		return blob.KindAccessDenied
	default:
		return blob.KindTransient
	}
}
