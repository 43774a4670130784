package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

const (
	// SpritePrefix is the key prefix every sprite lives under.
	SpritePrefix = "icons/"
	ManifestKey  = SpritePrefix + "manifest.json"

	contentTypePNG  = "image/png"
	contentTypeJSON = "application/json"
)

// SpriteObject describes one stored icon.
type SpriteObject struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// SpriteStore reads and writes marker PNGs under icons/{name}.png.
type SpriteStore struct {
	client *Client
	logger logging.Logger
}

func NewSpriteStore(client *Client, logger logging.Logger) *SpriteStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SpriteStore{client: client, logger: logger.Named("sprite_store")}
}

// SpriteKey maps an icon name to its object key.
func SpriteKey(name string) string {
	return SpritePrefix + name + ".png"
}

func nameFromKey(key string) string {
	return strings.TrimSuffix(path.Base(key), ".png")
}

// PutPNG uploads data as icons/{name}.png.
func (s *SpriteStore) PutPNG(ctx context.Context, name string, data []byte) (SpriteObject, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return SpriteObject{}, errors.New(errors.ErrCodeValidation, "invalid sprite name").WithDetail(name)
	}
	return s.put(ctx, SpriteKey(name), data, contentTypePNG)
}

// PutManifest uploads the JSON manifest describing a publish run.
func (s *SpriteStore) PutManifest(ctx context.Context, data []byte) (SpriteObject, error) {
	return s.put(ctx, ManifestKey, data, contentTypeJSON)
}

func (s *SpriteStore) put(ctx context.Context, key string, data []byte, contentType string) (SpriteObject, error) {
	if err := s.client.checkOpen(); err != nil {
		return SpriteObject{}, err
	}
	info, err := s.client.api.PutObject(ctx, s.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=300",
	})
	if err != nil {
		return SpriteObject{}, errors.Wrapf(err, errors.ErrCodeStorageError, "failed to upload %s", key)
	}
	s.logger.Debug("object uploaded", logging.String("key", key), logging.Int64("size", info.Size))
	return SpriteObject{
		Name:         nameFromKey(key),
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Get downloads a sprite by icon name.
func (s *SpriteStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	key := SpriteKey(name)
	if _, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(key)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "failed to stat %s", key)
	}
	rc, err := s.client.api.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "failed to download %s", key)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeStorageError, "failed to read %s", key)
	}
	return data, nil
}

// List returns the stored sprites sorted by name; the manifest is skipped.
func (s *SpriteStore) List(ctx context.Context) ([]SpriteObject, error) {
	if err := s.client.checkOpen(); err != nil {
		return nil, err
	}
	var out []SpriteObject
	for obj := range s.client.api.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: SpritePrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "failed to list sprites")
		}
		if !strings.HasSuffix(obj.Key, ".png") {
			continue
		}
		out = append(out, SpriteObject{
			Name:         nameFromKey(obj.Key),
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Prune removes sprites whose name is not in keep and returns the removed
// names.
func (s *SpriteStore) Prune(ctx context.Context, keep map[string]bool) ([]string, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, obj := range existing {
		if keep[obj.Name] {
			continue
		}
		if err := s.client.api.RemoveObject(ctx, s.client.Bucket(), obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, errors.Wrapf(err, errors.ErrCodeStorageError, "failed to remove %s", obj.Key)
		}
		removed = append(removed, obj.Name)
	}
	return removed, nil
}

// URL returns a presigned download link valid for the configured expiry.
func (s *SpriteStore) URL(ctx context.Context, name string) (string, error) {
	if err := s.client.checkOpen(); err != nil {
		return "", err
	}
	u, err := s.client.api.PresignedGetObject(ctx, s.client.Bucket(), SpriteKey(name), s.client.cfg.PresignExpiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign sprite url")
	}
	return u.String(), nil
}

//Personal.AI order the ending
