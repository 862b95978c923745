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

package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// JPEGHeader starts every frame the FakeVideoTool writes, so MIME sniffing
// sees a JPEG.
var JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// FakeVideoTool writes deterministic artifacts instead of running ffmpeg.
type FakeVideoTool struct {
	Duration  float64
	FailCutAt map[float64]bool // Cut start times that fail.
	DropAt    map[float64]bool // Frame times that produce no output.
	CutDelay  time.Duration

	mu       sync.Mutex
	Cuts     []CutCall
	FrameAts []float64
}

type CutCall struct {
	Start    float64
	Duration float64
	Reencode bool
	At       time.Time
}

// CutContent is what a successful Cut writes.
func CutContent(src string, start float64, duration float64) []byte {
	return []byte(fmt.Sprintf("cut:%s:%.3f:%.3f", filepath.Base(src), start, duration))
}

func (f *FakeVideoTool) Cut(ctx context.Context, src string, dst string, start float64, duration float64, reencode bool) error {
	f.mu.Lock()
	f.Cuts = append(f.Cuts, CutCall{Start: start, Duration: duration, Reencode: reencode, At: time.Now()})
	f.mu.Unlock()

	if f.CutDelay > 0 {
		select {
		case <-time.After(f.CutDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.FailCutAt[start] {
		return errors.New("ffmpeg exited with status 1")
	}
	return os.WriteFile(dst, CutContent(src, start, duration), 0o600)
}

func (f *FakeVideoTool) ExtractFrame(_ context.Context, _ string, dst string, at float64) error {
	f.mu.Lock()
	f.FrameAts = append(f.FrameAts, at)
	f.mu.Unlock()
	if f.DropAt[at] {
		return nil
	}
	data := append(append([]byte{}, JPEGHeader...), []byte(fmt.Sprintf("at=%.3f", at))...)
	return os.WriteFile(dst, data, 0o600)
}

func (f *FakeVideoTool) ProbeDuration(context.Context, string) (float64, error) {
	if f.Duration <= 0 {
		return 0, errors.New("no duration")
	}
	return f.Duration, nil
}

// CutCalls returns a copy of the recorded cuts.
func (f *FakeVideoTool) CutCalls() []CutCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CutCall(nil), f.Cuts...)
}

// FakeVision answers with Describe, or Text when Describe is nil. Images
// containing FailOn fail.
type FakeVision struct {
	Text     string
	Describe func(image []byte) string
	FailOn   string
	Delay    time.Duration
	Calls    atomic.Int32
	MIMEs    sync.Map
}

func (v *FakeVision) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	v.Calls.Add(1)
	v.MIMEs.Store(mimeType, true)
	if v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if len(v.FailOn) > 0 && bytes.Contains(image, []byte(v.FailOn)) {
		return "", errors.New("vision service unavailable")
	}
	if v.Describe != nil {
		return v.Describe(image), nil
	}
	return v.Text, nil
}

// MemoryObjectStore keeps objects in memory and serves signed URLs from an
// httptest server.
type MemoryObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	server    *httptest.Server
	FailPut   bool
	Downloads atomic.Int32
}

func NewMemoryObjectStore() *MemoryObjectStore {
	s := &MemoryObjectStore{objects: make(map[string][]byte), types: make(map[string]string)}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *MemoryObjectStore) Close() {
	s.server.Close()
}

func (s *MemoryObjectStore) serve(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/o/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.Downloads.Add(1)
	_, _ = w.Write(data)
}

func (s *MemoryObjectStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if s.FailPut {
		return errors.New("bucket unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *MemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, model.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryObjectStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/o/%s?expires=%d", s.server.URL, url.PathEscape(key), time.Now().Add(ttl).Unix()), nil
}

// Keys returns the stored keys.
func (s *MemoryObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

// ContentType returns the content type key was stored with.
func (s *MemoryObjectStore) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[key]
}
