// Package objectstore provides a NATS JetStream implementation of the audio
// blob store.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const contentTypeHeader = "Content-Type"

// NatsObjectStore implements the core.BlobStore interface using NATS
// JetStream. Uploads overwrite, which gives the QC replace action its
// stable-key semantics.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
}

// New creates and initializes a new NatsObjectStore.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	// Use a "create-first" approach.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Ad audio storage for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = jetstreamContext.ObjectStore(bucketName)
			if err != nil {
				return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
			}
		} else {
			// For any other error, fail.
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		store:            store,
	}, nil
}

// Upload saves an object to the NATS object store, overwriting any previous
// content at the same key. The content type rides along as a header so the
// media handler can serve it back faithfully.
func (n *NatsObjectStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)

	meta := &nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nats.Header{contentTypeHeader: []string{contentType}},
		Metadata:    nil,
		Opts:        nil,
	}

	_, err := n.store.Put(meta, reader)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Exists reports whether an object is present at key. A missing object is
// not an error; any other store failure is.
func (n *NatsObjectStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := n.store.GetInfo(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	return true, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// ContentType returns the content type recorded when key was uploaded, or
// an empty string when none was stored.
func (n *NatsObjectStore) ContentType(_ context.Context, key string) (string, error) {
	info, err := n.store.GetInfo(key)
	if err != nil {
		return "", fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	if info.Headers == nil {
		return "", nil
	}

	return info.Headers.Get(contentTypeHeader), nil
}
