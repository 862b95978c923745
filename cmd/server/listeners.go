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

package main

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/cloud"
)

// UploadTopic is the subscription key of upload finalize notifications.
const UploadTopic = "UploadTopic"

// SetupListeners attaches the segmentation workflow to the upload
// subscription and starts receiving.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients) error {
	listener, ok := cloudClients.PubSubListeners[UploadTopic]
	if !ok {
		return fmt.Errorf("topic_subscriptions has no %s entry", UploadTopic)
	}
	listener.SetCommand(state.segmentation)
	listener.Listen(ctx)
	return nil
}
