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
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// outputTail bounds how much subprocess output is carried in an error.
const outputTail = 2048

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// FFMpegTool runs ffmpeg as the VideoTool. Every invocation is bounded by
// timeout and killed when its context ends.
type FFMpegTool struct {
	commandPath string
	width       int
	height      int
	timeout     time.Duration
}

func NewFFMpegTool(commandPath string, width int, height int, timeout time.Duration) *FFMpegTool {
	if len(commandPath) == 0 {
		commandPath = "ffmpeg"
	}
	return &FFMpegTool{commandPath: commandPath, width: width, height: height, timeout: timeout}
}

// CutArgs builds the arguments that copy [start, start+duration) of src into
// dst, re-encoding to H.264/AAC when asked.
func CutArgs(src string, dst string, start float64, duration float64, reencode bool) []string {
	args := []string{"-hide_banner", "-y", "-ss", seconds(start), "-i", src, "-t", seconds(duration)}
	if reencode {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "18", "-c:a", "aac")
	} else {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "make_zero")
	}
	return append(args, "-movflags", "+faststart", dst)
}

// FrameArgs builds the arguments that write the frame at `at` to dst, scaled
// and padded to width x height.
func FrameArgs(src string, dst string, at float64, width int, height int) []string {
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height, width, height)
	return []string{"-hide_banner", "-y", "-ss", seconds(at), "-i", src, "-frames:v", "1", "-vf", filter, "-q:v", "2", dst}
}

// ParseDuration reads the "Duration: HH:MM:SS.ss" line ffmpeg prints for
// its input.
func ParseDuration(output string) (float64, error) {
	m := durationPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("no duration in ffmpeg output")
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", m[0], err)
	}
	return float64(h*3600+mins*60) + sec, nil
}

func (f *FFMpegTool) Cut(ctx context.Context, src string, dst string, start float64, duration float64, reencode bool) error {
	_, err := f.run(ctx, CutArgs(src, dst, start, duration, reencode))
	return err
}

func (f *FFMpegTool) ExtractFrame(ctx context.Context, src string, dst string, at float64) error {
	_, err := f.run(ctx, FrameArgs(src, dst, at, f.width, f.height))
	return err
}

// ProbeDuration runs ffmpeg without an output, which always exits non-zero,
// and reads the duration from what it printed.
func (f *FFMpegTool) ProbeDuration(ctx context.Context, src string) (float64, error) {
	out, err := f.run(ctx, []string{"-hide_banner", "-i", src})
	if d, perr := ParseDuration(out); perr == nil {
		return d, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("probing %s: no duration reported", src)
}

func (f *FFMpegTool) run(ctx context.Context, args []string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, f.commandPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", err, ctx.Err())
		}
		return string(out), fmt.Errorf("ffmpeg %s: %w\n%s", strings.Join(args, " "), err, tail(out))
	}
	return string(out), nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(out []byte) string {
	if len(out) > outputTail {
		out = out[len(out)-outputTail:]
	}
	return strings.TrimSpace(string(out))
}
