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
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// headerSize is enough for filetype to recognize every supported container.
const headerSize = 261

// Containers that accept stream copied H.264/AAC cuts as they are.
var copyableContainers = map[string]bool{
	"mp4": true,
	"m4v": true,
	"mov": true,
}

// NeedsReencode reports whether the file at path is in a container that
// stream copy cannot normalize.
func NeedsReencode(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, fmt.Errorf("reading header of %s: %w", path, err)
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return true, nil
	}
	return !copyableContainers[kind.Extension], nil
}

// DetectMIME returns the MIME type of data, or fallback when unrecognized.
func DetectMIME(data []byte, fallback string) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return fallback
	}
	return kind.MIME.Value
}
