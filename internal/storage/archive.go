// Package storage archives the raw text of ingested documents in S3.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const documentsPrefix = "documents"

// Archive stores documents under documents/<id>-<nanoid>/<filename>.
type Archive struct {
	client S3API
	bucket string
}

func NewArchive(client S3API, bucket string) (*Archive, error) {
	if client == nil {
		return nil, errors.New("s3 client is nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket is empty")
	}
	return &Archive{client: client, bucket: bucket}, nil
}

// NewArchiveFromEnv returns nil without error when AWS_BUCKET is unset.
func NewArchiveFromEnv(ctx context.Context) (*Archive, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	if bucket == "" {
		return nil, nil
	}
	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	return NewArchive(client, bucket)
}

func documentFolder(documentID int64) string {
	return fmt.Sprintf("%s/%d-", documentsPrefix, documentID)
}

// Archive uploads content and returns its object key.
func (a *Archive) Archive(ctx context.Context, documentID int64, filename string, content []byte) (string, error) {
	id, err := gonanoid.New(12)
	if err != nil {
		return "", err
	}
	key := documentFolder(documentID) + id + "/" + cleanFilename(filename)
	if err := putFile(ctx, a.client, a.bucket, key, content); err != nil {
		return "", err
	}
	logger.Debug("[Storage] Archived document", "document", documentID, "key", key, "bytes", len(content))
	return key, nil
}

// Remove deletes every archived copy of the document.
func (a *Archive) Remove(ctx context.Context, documentID int64) error {
	n, err := deleteFolder(ctx, a.client, a.bucket, documentFolder(documentID))
	if err != nil {
		return err
	}
	logger.Debug("[Storage] Removed archived document", "document", documentID, "objects", n)
	return nil
}

// Keys lists the archived objects of a document.
func (a *Archive) Keys(ctx context.Context, documentID int64) ([]string, error) {
	return listFilesWithPrefix(ctx, a.client, a.bucket, documentFolder(documentID))
}

// Get returns the content stored at key.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	return getFile(ctx, a.client, a.bucket, key)
}
