package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// FFprobeProber extracts video metadata by shelling out to ffprobe.
type FFprobeProber struct {
	path string
}

func NewFFprobeProber() (*FFprobeProber, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return &FFprobeProber{path: path}, nil
}

type ffprobeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobeProber) Probe(ctx context.Context, videoPath string) (ProbeInfo, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return ProbeInfo{}, fmt.Errorf("video file not accessible: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(stdout.Bytes())
}

func parseFFprobeOutput(data []byte) (ProbeInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ProbeInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return ProbeInfo{}, fmt.Errorf("no video stream found")
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return ProbeInfo{}, fmt.Errorf("invalid video duration %q", out.Format.Duration)
	}

	return ProbeInfo{
		Duration: duration,
		Width:    out.Streams[0].Width,
		Height:   out.Streams[0].Height,
	}, nil
}
