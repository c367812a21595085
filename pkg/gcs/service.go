package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

type GCSClient struct {
	client     *storage.Client
	bucketName string
}

func NewGCSClient(ctx context.Context, bucketName string) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes content to objectPath and returns its gs:// URI.
func (g *GCSClient) Upload(ctx context.Context, objectPath, contentType string, content io.Reader) (string, error) {
	bucket := g.client.Bucket(g.bucketName)
	obj := bucket.Object(objectPath)

	writer := obj.NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return ObjectURI(g.bucketName, objectPath), nil
}

// Delete removes the object behind a gs:// URI. Missing objects are not an error.
func (g *GCSClient) Delete(ctx context.Context, gcsURI string) error {
	bucketName, objectPath, err := ParseObjectURI(gcsURI)
	if err != nil {
		return err
	}

	if err := g.client.Bucket(bucketName).Object(objectPath).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ObjectURI formats a gs:// URI.
func ObjectURI(bucketName, objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", bucketName, objectPath)
}

// ParseObjectURI splits a gs://bucket/path URI.
func ParseObjectURI(gcsURI string) (string, string, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URL format: %s", gcsURI)
	}
	rest := strings.TrimPrefix(gcsURI, "gs://")
	slashIndex := strings.Index(rest, "/")
	if slashIndex <= 0 || slashIndex == len(rest)-1 {
		return "", "", fmt.Errorf("invalid GCS URL format, no object path: %s", gcsURI)
	}
	return rest[:slashIndex], rest[slashIndex+1:], nil
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}
