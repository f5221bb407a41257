package trees

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"tree-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/paulmach/orb/geojson"
)

// Resource kinds, used as the sub directory (or prefix) of a GeoJSON name.
const (
	KindCityShape = "city_shape"
	KindTrees     = "trees"
)

const geoJSONExt = ".geojson"

// ErrResourceNotFound is returned when a GeoJSON resource does not exist.
var ErrResourceNotFound = errors.New("geojson resource not found")

// GeoDataSource reads and writes named GeoJSON feature collections.
type GeoDataSource interface {
	Read(ctx context.Context, kind, name string) (*geojson.FeatureCollection, error)
	Write(ctx context.Context, kind, name string, fc *geojson.FeatureCollection) error
	List(ctx context.Context, kind string) ([]string, error)
}

// NewGeoDataSource returns the source selected by cfg.Source.
func NewGeoDataSource(cfg Config, client storage.Client, bucket string) (GeoDataSource, error) {
	switch cfg.Source {
	case SourceFile:
		return NewFileSource(cfg.ResourcesDir), nil
	case SourceBucket:
		if client == nil {
			return nil, fmt.Errorf("bucket source requires a storage client")
		}
		return NewBucketSource(client, bucket, cfg.BucketPrefix), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// FileSource keeps resources under <dir>/<kind>/<name>.geojson.
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) path(kind, name string) string {
	return filepath.Join(s.dir, kind, name+geoJSONExt)
}

// Read loads the named feature collection.
func (s *FileSource) Read(_ context.Context, kind, name string) (*geojson.FeatureCollection, error) {
	p := s.path(kind, name)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return decodeFeatureCollection(p, data)
}

// Write stores fc, replacing any previous file.
func (s *FileSource) Write(_ context.Context, kind, name string, fc *geojson.FeatureCollection) error {
	p := s.path(kind, name)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// List returns the sorted resource names of kind.
func (s *FileSource) List(_ context.Context, kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, kind))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s resources: %w", kind, err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), geoJSONExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), geoJSONExt))
	}
	sort.Strings(names)
	return names, nil
}

// BucketSource keeps resources as objects <prefix>/<kind>/<name>.geojson.
type BucketSource struct {
	client storage.Client
	bucket string
	prefix string
}

// NewBucketSource creates a source on bucket below prefix.
func NewBucketSource(client storage.Client, bucket, prefix string) *BucketSource {
	return &BucketSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *BucketSource) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *BucketSource) key(kind, name string) string {
	return path.Join(s.prefix, kind, name+geoJSONExt)
}

// Read downloads the named feature collection.
func (s *BucketSource) Read(ctx context.Context, kind, name string) (*geojson.FeatureCollection, error) {
	key := s.key(kind, name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrResourceNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrResourceNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return decodeFeatureCollection(key, data)
}

// Write uploads fc, replacing any previous object.
func (s *BucketSource) Write(ctx context.Context, kind, name string, fc *geojson.FeatureCollection) error {
	key := s.key(kind, name)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/geo+json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// List returns the sorted resource names of kind.
func (s *BucketSource) List(ctx context.Context, kind string) ([]string, error) {
	prefix := path.Join(s.prefix, kind) + "/"
	names := []string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		rel := strings.TrimPrefix(obj.Key, prefix)
		if strings.Contains(rel, "/") || !strings.HasSuffix(rel, geoJSONExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(rel, geoJSONExt))
	}
	sort.Strings(names)
	return names, nil
}

func decodeFeatureCollection(name string, data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geojson %s: %w", name, err)
	}
	return fc, nil
}
