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
	goctx "context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/analysis"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/cor"
	"github.com/jaycherian/gcp-go-scene-scoring/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FrameAnalyzer sends sampled frames to the vision service through a pool
// of workers and parses each answer. One failed frame fails the scene.
type FrameAnalyzer struct {
	cor.BaseCommand
	vision          VisionClient
	parser          analysis.AttributeParser
	numberOfWorkers int
}

func NewFrameAnalyzer(name string, vision VisionClient, parser analysis.AttributeParser, numberOfWorkers int) *FrameAnalyzer {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	if parser == nil {
		parser = analysis.NewKeywordParser()
	}
	return &FrameAnalyzer{
		BaseCommand:     *cor.NewBaseCommand(name),
		vision:          vision,
		parser:          parser,
		numberOfWorkers: numberOfWorkers,
	}
}

// IsExecutable also requires the scene the frames belong to.
func (c *FrameAnalyzer) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamScene) != nil
}

type frameJob struct {
	ctx     goctx.Context
	tracer  trace.Tracer
	sceneId string
	frame   *model.SampledFrame
}

type frameResult struct {
	value *model.FrameAnalysis
	err   error
}

func (c *FrameAnalyzer) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]*model.SampledFrame)
	scene := context.Get(ParamScene).(*model.Scene)

	var wg sync.WaitGroup
	jobs := make(chan *frameJob, len(frames))
	results := make(chan *frameResult, len(frames))

	for w := 0; w < c.numberOfWorkers; w++ {
		wg.Add(1)
		go c.worker(jobs, results, &wg)
	}
	for _, f := range frames {
		jobs <- &frameJob{ctx: context.GetContext(), tracer: c.Tracer, sceneId: scene.Id, frame: f}
	}
	close(jobs)
	wg.Wait()
	close(results)

	analyses := make([]*model.FrameAnalysis, 0, len(frames))
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		analyses = append(analyses, r.value)
	}
	if len(errs) > 0 {
		c.Fail(context, fmt.Errorf("analyzing scene %s: %w", scene.Id, errors.Join(errs...)))
		return
	}

	analysis.SortByTimestamp(analyses)
	context.Add(ParamFrameAnalyses, analyses)
	c.Succeed(context, analyses)
}

func (c *FrameAnalyzer) worker(jobs <-chan *frameJob, results chan<- *frameResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		value, err := c.analyze(job)
		results <- &frameResult{value: value, err: err}
	}
}

// analyze removes the frame file once the vision call returns, whatever
// its outcome.
func (c *FrameAnalyzer) analyze(job *frameJob) (*model.FrameAnalysis, error) {
	ctx, span := job.tracer.Start(job.ctx, "analyze-frame")
	defer span.End()
	span.SetAttributes(attribute.String("scene.id", job.sceneId), attribute.Float64("frame.timestamp", job.frame.Timestamp))
	defer os.Remove(job.frame.Path)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}
	data, err := os.ReadFile(job.frame.Path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reading frame at %.1fs: %w", job.frame.Timestamp, err)
	}
	text, err := c.vision.DescribeImage(ctx, data, DetectMIME(data, "image/jpeg"))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("frame at %.1fs: %w", job.frame.Timestamp, err)
	}
	span.SetStatus(codes.Ok, "analyzed")
	return model.NewFrameAnalysis(job.sceneId, job.frame.Timestamp, c.parser.Parse(text), text), nil
}
