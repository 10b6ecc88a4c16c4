package storage

import (
	"context"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// GCSOptions configures GCS client initialization.
type GCSOptions struct {
	// CredentialsFile or CredentialsJSON select a service account key.
	// When both are empty, application default credentials are used.
	CredentialsFile string
	CredentialsJSON []byte
	// WithoutAuthentication is for emulators.
	WithoutAuthentication bool
	Endpoint              string
	UserAgent             string
	// GoogleAccessID and PrivateKey enable signed URLs.
	GoogleAccessID string
	PrivateKey     []byte
}

// GCSAdapter implements Storage using Google Cloud Storage.
type GCSAdapter struct {
	client         *gcs.Client
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
}

// NewGCS constructs a GCS adapter.
func NewGCS(ctx context.Context, opts GCSOptions) (*GCSAdapter, error) {
	var clientOpts []option.ClientOption

	switch {
	case opts.WithoutAuthentication:
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	case opts.CredentialsFile != "" || len(opts.CredentialsJSON) > 0:
		raw := opts.CredentialsJSON
		if len(raw) == 0 {
			b, err := os.ReadFile(opts.CredentialsFile)
			if err != nil {
				return nil, err
			}
			raw = b
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, gcs.ScopeReadWrite)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	if opts.UserAgent != "" {
		clientOpts = append(clientOpts, option.WithUserAgent(opts.UserAgent))
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}

	return &GCSAdapter{
		client:         client,
		googleAccessID: opts.GoogleAccessID,
		privateKey:     opts.PrivateKey,
		now:            time.Now,
	}, nil
}

// PutObject streams r into bucket/key.
func (g *GCSAdapter) PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return ObjectInfo{}, err
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, err
	}

	info := ObjectInfo{Bucket: bucket, Key: key, Size: n}
	if attrs := w.Attrs(); attrs != nil {
		info.Size = attrs.Size
		info.ETag = attrs.Etag
	}

	return info, nil
}

// PresignGet returns a V4 signed download URL. It needs GoogleAccessID and PrivateKey.
func (g *GCSAdapter) PresignGet(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if g.googleAccessID == "" || len(g.privateKey) == 0 {
		return "", ErrMissingSigner
	}

	return gcs.SignedURL(bucket, key, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		Expires:        g.now().Add(expiry),
		GoogleAccessID: g.googleAccessID,
		PrivateKey:     g.privateKey,
	})
}

// Close closes the GCS client.
func (g *GCSAdapter) Close() error {
	return g.client.Close()
}
