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
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
)

// Object metadata keys read from upload notifications.
const (
	MetadataOwner   = "owner_id"
	MetadataProject = "project_id"
	MetadataCuts    = "cuts"
)

// UploadTriggerReader turns a Cloud Storage finalize notification into a
// segmentation request. Every rejection wraps model.ErrMalformedInput.
type UploadTriggerReader struct {
	cor.BaseCommand
}

func NewUploadTriggerReader(name string) *UploadTriggerReader {
	return &UploadTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *UploadTriggerReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		c.Fail(context, fmt.Errorf("%w: notification is not text", model.ErrMalformedInput))
		return
	}
	req, err := ParseUploadNotification([]byte(in))
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.Add(ParamVideo, req.Video)
	c.Succeed(context, req)
}

// ParseUploadNotification decodes a notification. Missing owner or project
// metadata and unparsable cuts are malformed input. No cuts selects whole
// video mode.
func ParseUploadNotification(data []byte) (*model.SegmentationRequest, error) {
	var n cloud.GCSPubSubNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: decoding notification: %w", model.ErrMalformedInput, err)
	}
	if len(n.Name) == 0 {
		return nil, fmt.Errorf("%w: notification without object name", model.ErrMalformedInput)
	}
	owner, project := n.MetaData[MetadataOwner], n.MetaData[MetadataProject]
	if len(owner) == 0 || len(project) == 0 {
		return nil, fmt.Errorf("%w: %s lacks %s or %s metadata", model.ErrMalformedInput, n.Name, MetadataOwner, MetadataProject)
	}

	cuts, err := ParseCuts(n.MetaData[MetadataCuts])
	if err != nil {
		return nil, err
	}

	video := model.NewVideo(owner, project, n.Name)
	video.MIMEType = n.ContentType

	batch := n.Generation
	if len(batch) == 0 {
		batch = uuid.NewString()
	}
	return &model.SegmentationRequest{
		Video:      video,
		Cuts:       cuts,
		WholeVideo: len(cuts) == 0,
		BatchId:    batch,
	}, nil
}

// ParseCuts decodes a JSON array of [start, end] pairs. Blank input means no
// cuts. Boundaries are validated later, together with the rest of the batch.
func ParseCuts(raw string) ([]model.CutRequest, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var pairs [][]float64
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("%w: cuts %q: %w", model.ErrMalformedInput, raw, err)
	}
	out := make([]model.CutRequest, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: cut %d has %d values", model.ErrMalformedInput, i, len(p))
		}
		out = append(out, model.CutRequest{Start: p[0], End: p[1]})
	}
	return out, nil
}
