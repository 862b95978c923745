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
	"log"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener feeds every message of one subscription to a command.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) (*PubSubListener, error) {
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen receives in the background until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	log.Printf("listening: %s", m.subscription)
	go func() {
		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			m.handle(msgCtx, msg.ID, msg.Data, msg.Ack)
		})
		if err != nil {
			log.Printf("error receiving data: %v", err)
		}
	}()
}

// handle runs the command and acks the message on success or when every
// recorded error marks the input as malformed. Anything else is left for
// redelivery.
func (m *PubSubListener) handle(ctx context.Context, id string, data []byte, ack func()) bool {
	tracer := otel.Tracer("message-listener")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("msg.id", id))

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(spanCtx)
	chainCtx.Add(cor.CtxIn, string(data))
	m.command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		span.SetStatus(codes.Ok, "success")
		ack()
		return true
	}

	malformed := true
	for _, e := range chainCtx.GetErrors() {
		log.Printf("error executing chain: %v", e)
		if !errors.Is(e, model.ErrMalformedInput) {
			malformed = false
		}
	}
	if malformed {
		span.SetStatus(codes.Error, "malformed")
		ack()
		return true
	}
	span.SetStatus(codes.Error, "failed")
	return false
}
