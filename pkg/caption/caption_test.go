package caption

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1, 1, 1, 1})
	for _, v := range p {
		assert.InDelta(t, 0.25, v, 1e-9)
	}

	p = Softmax([]float64{1000, 0})
	assert.InDelta(t, 1.0, p[0], 1e-9)
	assert.Nil(t, Softmax(nil))
}

func TestRank(t *testing.T) {
	labels := Rank([]string{"a", "b", "c"}, []float64{0.1, 0.71234, 0.18766}, 2)
	require.Len(t, labels, 2)
	assert.Equal(t, Label{Text: "b", Confidence: 0.712}, labels[0])
	assert.Equal(t, "c", labels[1].Text)

	assert.Len(t, Rank([]string{"a", "b"}, []float64{0.5, 0.5}, 0), 2)
}

func TestLoadEmbeddings(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "scenes.json", []byte(`{
		"model": "ViT-B/32",
		"scenes": [
			{"text": "a screenshot of a video player", "embedding": [3, 4]},
			{"text": "a screenshot of settings menu", "embedding": [0, 2]}
		]}`), 0o644))

	e, err := LoadEmbeddings(fs, "scenes.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a screenshot of a video player", "a screenshot of settings menu"}, e.Texts())
	assert.InDelta(t, 0.6, e.Scenes[0].Embedding[0], 1e-6)
	assert.InDelta(t, 1.0, e.Scenes[1].Embedding[1], 1e-6)

	scores, err := e.Similarities([]float32{0, 10}, 100)
	require.NoError(t, err)
	assert.Greater(t, scores[1], scores[0])
	assert.InDelta(t, 1.0, scores[0]+scores[1], 1e-9)

	_, err = e.Similarities([]float32{1, 2, 3}, 100)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoadEmbeddingsRejectsRagged(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"scenes":[{"text":"a","embedding":[1,2]},{"text":"b","embedding":[1]}]}`), 0o644))
	_, err := LoadEmbeddings(fs, "bad.json")
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, afero.WriteFile(fs, "empty.json", []byte(`{"scenes":[]}`), 0o644))
	_, err = LoadEmbeddings(fs, "empty.json")
	assert.ErrorIs(t, err, ErrNoScenes)
}

func TestNewCLIPMissingModel(t *testing.T) {
	_, err := NewCLIP(afero.NewMemMapFs(), DefaultCLIPConfig(), nil)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestScoreReply(t *testing.T) {
	scores := ScoreReply(DefaultScenes, "3")
	assert.Equal(t, 1.0, scores[2])

	scores = ScoreReply(DefaultScenes, "Answer: 5.")
	assert.Equal(t, 1.0, scores[4])

	scores = ScoreReply(DefaultScenes, "It looks like a web browser showing a search bar")
	best := Rank(DefaultScenes, scores, 1)[0]
	assert.Equal(t, "a screenshot of a web browser with search bar", best.Text)

	scores = ScoreReply(DefaultScenes, "no idea")
	assert.InDelta(t, 1.0/12, scores[0], 1e-9)
}

func TestVisionCaptioner(t *testing.T) {
	mock := inference.NewMock("")
	mock.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		return &inference.VisionResponse{Content: "1"}, nil
	}
	v := NewVision(mock, nil, nil)
	assert.Contains(t, v.Prompt(), "12. a screenshot of document viewer or PDF reader")

	frame := screen.NewFrame(image.NewRGBA(image.Rect(0, 0, 64, 64)), 1, time.Now())
	labels, err := v.Caption(context.Background(), frame, 1)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "a screenshot of a WhatsApp chat conversation", labels[0].Text)
	assert.Equal(t, 1, mock.CallCount("Vision"))

	mock.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		return nil, errors.New("boom")
	}
	_, err = v.Caption(context.Background(), frame, 1)
	assert.Error(t, err)
}

func TestStaticCaptioner(t *testing.T) {
	s := &Static{Labels: []Label{{Text: "x", Confidence: 0.9}, {Text: "y", Confidence: 0.1}}}
	labels, err := s.Caption(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []Label{{Text: "x", Confidence: 0.9}}, labels)
}
