package utils

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/api/option"
)

var ErrFileNotFound = errors.New("file not found")

type StoredFile struct {
	Key      string
	URL      string
	Size     int64
	Checksum string
}

// FileStore accepts a blob and hands back a retrievable URL.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (StoredFile, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds a storage key that is unique per upload and keeps the
// original extension.
func ObjectKey(prefix, id, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, fmt.Sprintf("%s-%d%s", id, time.Now().UnixNano(), ext))
}

// checksumReader tees the upload through blake2b while it is copied.
func checksumReader(r io.Reader) (io.Reader, func() string) {
	h, _ := blake2b.New256(nil)
	return io.TeeReader(r, h), func() string { return hex.EncodeToString(h.Sum(nil)) }
}

type LocalStore struct {
	dir     string
	baseURL string
	tokens  *FileTokens
}

func NewLocalStore(dir, baseURL string, tokens *FileTokens) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", ErrFileNotFound
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, r io.Reader) (StoredFile, error) {
	p, err := s.path(key)
	if err != nil {
		return StoredFile{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return StoredFile{}, err
	}
	f, err := os.Create(p)
	if err != nil {
		return StoredFile{}, err
	}
	defer f.Close()

	tee, sum := checksumReader(r)
	n, err := io.Copy(f, tee)
	if err != nil {
		_ = os.Remove(p)
		return StoredFile{}, err
	}

	u, err := s.URL(ctx, key)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Key: key, URL: u, Size: n, Checksum: sum()}, nil
}

func (s *LocalStore) URL(_ context.Context, key string) (string, error) {
	token, err := s.tokens.Sign(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/files/%s?token=%s", s.baseURL, key, url.QueryEscape(token)), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Open verifies the download token and opens the stored file.
func (s *LocalStore) Open(key, token string) (*os.File, error) {
	if err := s.tokens.Verify(token, key); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return f, err
}

type GCSStore struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
}

func NewGCSStore(ctx context.Context, bucket, credentialsJSON string, ttl time.Duration) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	var (
		client *storage.Client
		err    error
	)
	if strings.TrimSpace(credentialsJSON) != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, err
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket, ttl: ttl}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (StoredFile, error) {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	tee, sum := checksumReader(r)
	n, err := io.Copy(wc, tee)
	if err != nil {
		_ = wc.Close()
		return StoredFile{}, err
	}
	if err := wc.Close(); err != nil {
		return StoredFile{}, err
	}

	u, err := s.URL(ctx, key)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Key: key, URL: u, Size: n, Checksum: sum()}, nil
}

func (s *GCSStore) URL(_ context.Context, key string) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	})
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
