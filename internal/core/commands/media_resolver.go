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

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MediaResolver makes durable media available as a local file. A file
// already at the expected path is reused; otherwise the object is downloaded
// through a signed URL.
type MediaResolver struct {
	objects cloud.ObjectStore
	client  *http.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewMediaResolver(objects cloud.ObjectStore, ttl time.Duration, timeout time.Duration) *MediaResolver {
	return &MediaResolver{
		objects: objects,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		ttl:     ttl,
		timeout: timeout,
	}
}

// Resolve returns localPath once it holds the object at key. Failures wrap
// ErrSourceUnavailable.
func (r *MediaResolver) Resolve(ctx context.Context, localPath string, key string) (string, error) {
	if info, err := os.Stat(localPath); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		return localPath, nil
	}
	if len(key) == 0 {
		return "", fmt.Errorf("%w: no media key for %s", ErrSourceUnavailable, filepath.Base(localPath))
	}
	if err := r.download(ctx, localPath, key); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, key, err)
	}
	return localPath, nil
}

func (r *MediaResolver) download(ctx context.Context, localPath string, key string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	url, err := r.objects.SignedURL(ctx, key, r.ttl)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return err
	}
	// Only a complete download is renamed into place.
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return err
	}
	slog.Debug("media downloaded", "key", key, "bytes", n, "path", localPath)
	return nil
}
