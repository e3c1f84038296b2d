package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder records inputs and returns canned vectors.
type fakeEmbedder struct {
	lastTexts []string
	vectors   [][]float64
	err       error
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func TestEmbedCollapsesNewlines(t *testing.T) {
	fake := &fakeEmbedder{}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	_, err := svc.Embed(context.Background(), "line one\nline two\nline three")
	require.NoError(t, err)

	require.Len(t, fake.lastTexts, 1)
	assert.Equal(t, "line one line two line three", fake.lastTexts[0])
}

func TestEmbedTruncatesLongInput(t *testing.T) {
	fake := &fakeEmbedder{}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	long := strings.Repeat("a", maxInputChars+500)
	_, err := svc.Embed(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, fake.lastTexts, 1)
	assert.Len(t, fake.lastTexts[0], maxInputChars)
}

func TestEmbedTruncatesOnRuneBoundary(t *testing.T) {
	fake := &fakeEmbedder{}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	// A multi-byte rune straddles the cut point.
	long := strings.Repeat("a", maxInputChars-1) + "日本語"
	_, err := svc.Embed(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, fake.lastTexts, 1)
	assert.True(t, utf8.ValidString(fake.lastTexts[0]))
	assert.Len(t, fake.lastTexts[0], maxInputChars-1)
}

func TestEmbedRejectsDimensionDrift(t *testing.T) {
	fake := &fakeEmbedder{vectors: [][]float64{{1, 0, 0}}}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	// First result locks the dimension.
	_, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)

	fake.vectors = [][]float64{{1, 0}}
	_, err = svc.Embed(context.Background(), "world")

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Contains(t, err.Error(), "expected 3-dimensional embedding, got 2")
}

func TestEmbedBatchRejectsMixedDimensions(t *testing.T) {
	fake := &fakeEmbedder{vectors: [][]float64{{1, 0}, {1, 0, 0}}}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	_, err := svc.EmbedBatch(context.Background(), []string{"one", "two"})

	var failure *Failure
	require.True(t, errors.As(err, &failure))
}

func TestEmbedWrapsUpstreamError(t *testing.T) {
	upstream := errors.New("rate limited")
	fake := &fakeEmbedder{err: upstream}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure), "error should be a *Failure")
	assert.ErrorIs(t, err, upstream)
}

func TestEmbedRejectsEmptyResult(t *testing.T) {
	fake := &fakeEmbedder{vectors: [][]float64{}}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	_, err := svc.Embed(context.Background(), "hello")

	var failure *Failure
	require.True(t, errors.As(err, &failure))
}

func TestEmbedBatchAlignsVectors(t *testing.T) {
	fake := &fakeEmbedder{}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Len(t, vectors, 3)
	assert.Equal(t, []string{"one", "two", "three"}, fake.lastTexts)
}

func TestEmbedBatchRejectsMisalignedResult(t *testing.T) {
	fake := &fakeEmbedder{vectors: [][]float64{{1, 0}}}
	svc := NewServiceWithEmbedder(fake, "test-model", nil)

	_, err := svc.EmbedBatch(context.Background(), []string{"one", "two"})

	var failure *Failure
	require.True(t, errors.As(err, &failure))
}

func TestVectorJSONRoundTrip(t *testing.T) {
	encoded, err := VectorToJSON([]float64{0.1, -0.5, 1})
	require.NoError(t, err)

	decoded, err := JSONToVector(encoded)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.5, 1}, decoded)

	empty, err := JSONToVector("")
	require.NoError(t, err)
	assert.Nil(t, empty)
}
