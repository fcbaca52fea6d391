package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	info   ProbeInfo
	err    error
	called bool
}

func (p *fakeProber) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	p.called = true
	return p.info, p.err
}

func validCandidate() Candidate {
	return Candidate{
		Path:        "/tmp/uploads/abc.mp4",
		FileName:    "technique.mp4",
		ContentType: "video/mp4",
		Size:        12_000_000,
	}
}

func TestValidate_AcceptsSupportedVideo(t *testing.T) {
	prober := &fakeProber{info: ProbeInfo{Duration: 20.5, Width: 1920, Height: 1080}}
	v := NewValidator(prober, nil)

	meta, err := v.Validate(context.Background(), validCandidate())
	require.NoError(t, err)

	assert.Equal(t, "technique.mp4", meta.FileName)
	assert.Equal(t, 20.5, meta.Duration)
	assert.Equal(t, int64(12_000_000), meta.Size)
	assert.Equal(t, "1920x1080", meta.Resolution)
	assert.Equal(t, "video/mp4", meta.Type)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
}

func TestValidate_SupportedTypes(t *testing.T) {
	prober := &fakeProber{info: ProbeInfo{Duration: 5, Width: 640, Height: 480}}
	v := NewValidator(prober, nil)

	for _, contentType := range []string{"video/mp4", "video/quicktime", "video/x-msvideo", "video/x-matroska"} {
		c := validCandidate()
		c.ContentType = contentType
		_, err := v.Validate(context.Background(), c)
		assert.NoError(t, err, contentType)
	}
}

func TestValidate_RejectsUnsupportedType(t *testing.T) {
	prober := &fakeProber{}
	v := NewValidator(prober, nil)

	for _, contentType := range []string{"image/png", "application/pdf", "text/plain", ""} {
		c := validCandidate()
		c.ContentType = contentType
		_, err := v.Validate(context.Background(), c)
		assert.ErrorIs(t, err, ErrUnsupportedType, contentType)
	}

	assert.False(t, prober.called, "type check short-circuits before probing")
}

func TestValidate_RejectsOversizedFile(t *testing.T) {
	prober := &fakeProber{}
	v := NewValidator(prober, nil)

	c := validCandidate()
	c.Size = MaxFileSize + 1
	_, err := v.Validate(context.Background(), c)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, prober.called, "size check short-circuits before probing")
}

func TestValidate_AcceptsFileAtSizeLimit(t *testing.T) {
	prober := &fakeProber{info: ProbeInfo{Duration: 30, Width: 1280, Height: 720}}
	v := NewValidator(prober, nil)

	c := validCandidate()
	c.Size = MaxFileSize
	_, err := v.Validate(context.Background(), c)
	assert.NoError(t, err)
}

func TestValidate_RejectsUnreadableFile(t *testing.T) {
	prober := &fakeProber{err: errors.New("moov atom not found")}
	v := NewValidator(prober, nil)

	_, err := v.Validate(context.Background(), validCandidate())
	assert.ErrorIs(t, err, ErrUnreadable)
}
