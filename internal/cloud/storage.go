// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// ObjectStore holds durable media. Keys are bucket relative.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// GCSPubSubNotification is the JSON payload of a Cloud Storage notification.
type GCSPubSubNotification struct {
	Kind           string            `json:"kind"`
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Bucket         string            `json:"bucket"`
	Generation     string            `json:"generation"`
	MetaGeneration string            `json:"metageneration"`
	ContentType    string            `json:"contentType"`
	TimeCreated    string            `json:"timeCreated"`
	Updated        string            `json:"updated"`
	Size           string            `json:"size"`
	MD5Hash        string            `json:"md5Hash"`
	MetaData       map[string]string `json:"metadata"`
}

type cachedURL struct {
	url     string
	refresh time.Time
}

// GCSObjectStore is an ObjectStore over a single bucket.
type GCSObjectStore struct {
	client      *storage.Client
	iam         *credentials.IamCredentialsClient
	bucket      string
	signerEmail string
	timeout     time.Duration
	urls        *lru.Cache
	now         func() time.Time
}

// NewGCSObjectStore returns a store for bucket. When iam and signerEmail are
// set, URLs are signed through IAM SignBlob; otherwise the client's own
// credentials sign them.
func NewGCSObjectStore(client *storage.Client, iam *credentials.IamCredentialsClient, bucket string, signerEmail string, timeout time.Duration, cacheSize int) (*GCSObjectStore, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &GCSObjectStore{
		client:      client,
		iam:         iam,
		bucket:      bucket,
		signerEmail: signerEmail,
		timeout:     timeout,
		urls:        cache,
		now:         time.Now,
	}, nil
}

func (s *GCSObjectStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Put writes data to key, replacing any existing object.
func (s *GCSObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get reads the object at key. A missing object is reported as
// model.ErrNotFound.
func (s *GCSObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("opening gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// SignedURL returns a V4 GET URL for key valid for ttl. URLs are reused until
// half of their lifetime has passed.
func (s *GCSObjectStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	now := s.now()
	cacheKey := fmt.Sprintf("%s|%d", key, ttl)
	if v, ok := s.urls.Get(cacheKey); ok {
		if c := v.(cachedURL); now.Before(c.refresh) {
			return c.url, nil
		}
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: now.Add(ttl),
	}
	if s.iam != nil && len(s.signerEmail) > 0 {
		opts.GoogleAccessID = s.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    "projects/-/serviceAccounts/" + s.signerEmail,
				Payload: b,
			})
			if err != nil {
				return nil, err
			}
			return resp.SignedBlob, nil
		}
	}

	u, err := s.client.Bucket(s.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("signing gs://%s/%s: %w", s.bucket, key, err)
	}
	s.urls.Add(cacheKey, cachedURL{url: u, refresh: now.Add(ttl / 2)})
	return u, nil
}
