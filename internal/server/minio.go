package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// parseS3Endpoint splits s3.endpoint into the host:port minio-go expects
// and whether to use TLS. A bare "host:port" means plain HTTP.
func parseS3Endpoint(raw string) (host string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("s3 endpoint is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("s3 endpoint: %w", err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", false, fmt.Errorf("s3 endpoint scheme %q is not http or https", u.Scheme)
	case u.Host == "":
		return "", false, errors.New("s3 endpoint has no host")
	case strings.Trim(u.Path, "/") != "", u.RawQuery != "", u.User != nil:
		return "", false, errors.New("s3 endpoint must be scheme://host[:port] only")
	}
	return u.Host, u.Scheme == "https", nil
}

// NewMinioClient connects to the configured S3 endpoint and checks that
// the snapshot bucket exists.
func NewMinioClient(ctx context.Context, cfg S3Config) (*minio.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 configuration incomplete")
	}

	endpoint, secure, err := parseS3Endpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return client, nil
}
