package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// gcs stores objects in a Google Cloud Storage bucket. Credentials come
// from explicit service-account JSON when configured, ADC otherwise.
type gcs struct {
	client *gcstorage.Client
	bucket string
	prefix string
}

func newGCS(lc fx.Lifecycle, cfg config.StorageConfig) (*gcs, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required for the gcs storage driver")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCSCredentials)))
	}

	client, err := gcstorage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return &gcs{
		client: client,
		bucket: cfg.GCSBucket,
		prefix: strings.Trim(cfg.GCSUploadPrefix, "/"),
	}, nil
}

func (g *gcs) Name() string { return DriverGCS }

func (g *gcs) object(key string) *gcstorage.ObjectHandle {
	name := key
	if g.prefix != "" {
		name = g.prefix + "/" + key
	}
	return g.client.Bucket(g.bucket).Object(name)
}

func (g *gcs) Put(ctx context.Context, key string, content []byte, contentType string) error {
	wc := g.object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(content); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

func (g *gcs) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (g *gcs) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	return err
}
