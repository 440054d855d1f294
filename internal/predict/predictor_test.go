package predict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vagangabrain/Optimised-jess/internal/imaging"
)

// --- Mock types ---

type stubStage struct {
	mock.Mock
	width  int
	height int
}

func (s *stubStage) Classify(t *imaging.Tensor) (string, float64, error) {
	args := s.Called(t)
	return args.String(0), args.Get(1).(float64), args.Error(2)
}

func (s *stubStage) InputSize() (int, int) {
	return s.width, s.height
}

type stubSource struct {
	mock.Mock
}

func (s *stubSource) FetchTensor(ctx context.Context, url string, width, height int) (*imaging.Tensor, error) {
	args := s.Called(ctx, url, width, height)
	if t, ok := args.Get(0).(*imaging.Tensor); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Helpers ---

const spawnURL = "https://cdn.discordapp.com/attachments/1/2/spawn.png"

func testTensor(width, height int) *imaging.Tensor {
	return &imaging.Tensor{Data: make([]float32, 3*width*height), Width: width, Height: height}
}

// newCascade builds a Predictor around stubbed stages, skipping artifact
// download and session loading.
func newCascade(primary, secondary *stubStage, source *stubSource) *Predictor {
	return &Predictor{
		cache:       NewCache(100, time.Hour),
		fetcher:     source,
		initialized: true,
		primary:     primary,
		secondary:   secondary,
		thresholds:  Thresholds{Primary: 80, Secondary: 90},
	}
}

// --- Tests ---

func TestPredict_PrimaryAccepted(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("Pikachu", 0.92, nil).Once()

	p := newCascade(primary, secondary, source)

	name, confidence, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)
	assert.Equal(t, "Pikachu", name)
	assert.Equal(t, "92.00%", confidence)

	// The secondary stage must not run at all when the primary clears its bar.
	secondary.AssertNotCalled(t, "Classify", mock.Anything)
	source.AssertNumberOfCalls(t, "FetchTensor", 1)

	cached, ok := p.cache.Get(Fingerprint(spawnURL))
	require.True(t, ok)
	assert.Equal(t, Result{Name: "Pikachu", Confidence: "92.00%", Source: SourcePrimary}, cached)

	primary.AssertExpectations(t)
	source.AssertExpectations(t)
}

func TestPredict_SecondaryOverrides(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	source.On("FetchTensor", mock.Anything, spawnURL, 336, 224).Return(testTensor(336, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("Eevee", 0.40, nil).Once()
	secondary.On("Classify", mock.Anything).Return("Eevee", 0.95, nil).Once()

	p := newCascade(primary, secondary, source)

	name, confidence, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)
	assert.Equal(t, "Eevee", name)
	assert.Equal(t, "95.00%", confidence)

	cached, ok := p.cache.Get(Fingerprint(spawnURL))
	require.True(t, ok)
	assert.Equal(t, SourceSecondary, cached.Source)

	source.AssertExpectations(t)
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestPredict_FallsBackToPrimary(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	source.On("FetchTensor", mock.Anything, spawnURL, 336, 224).Return(testTensor(336, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("Ditto", 0.50, nil).Once()
	secondary.On("Classify", mock.Anything).Return("Ditto", 0.60, nil).Once()

	p := newCascade(primary, secondary, source)

	name, confidence, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)

	// A weak secondary never overrides: the primary's label and the
	// primary's confidence come back, not the secondary's 60%.
	assert.Equal(t, "Ditto", name)
	assert.Equal(t, "50.00%", confidence)

	cached, ok := p.cache.Get(Fingerprint(spawnURL))
	require.True(t, ok)
	assert.Equal(t, Result{Name: "Ditto", Confidence: "50.00%", Source: SourcePrimaryFallback}, cached)
}

func TestPredict_PrimaryThresholdIsInclusive(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("Snorlax", 0.80, nil).Once()

	p := newCascade(primary, secondary, source)

	_, confidence, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)
	assert.Equal(t, "80.00%", confidence)
	secondary.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestPredict_SecondCallServedFromCache(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("Pikachu", 0.92, nil).Once()

	p := newCascade(primary, secondary, source)

	name1, conf1, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)

	name2, conf2, err := p.Predict(context.Background(), spawnURL)
	require.NoError(t, err)

	assert.Equal(t, name1, name2)
	assert.Equal(t, conf1, conf2)

	// Zero additional network or inference work on the cached call.
	source.AssertNumberOfCalls(t, "FetchTensor", 1)
	primary.AssertNumberOfCalls(t, "Classify", 1)
}

func TestPredict_FetchErrorPropagatesClassified(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).
		Return(nil, &imaging.FetchError{Kind: imaging.KindNotFound, URL: spawnURL}).Once()

	p := newCascade(primary, secondary, source)

	_, _, err := p.Predict(context.Background(), spawnURL)
	require.Error(t, err)
	assert.True(t, imaging.IsNotFound(err))

	_, ok := p.cache.Get(Fingerprint(spawnURL))
	assert.False(t, ok, "failures are never cached")
}

func TestPredict_PrimaryInferenceErrorIsFatal(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	primary.On("Classify", mock.Anything).Return("", 0.0, errors.New("session blew up")).Once()

	p := newCascade(primary, secondary, source)

	_, _, err := p.Predict(context.Background(), spawnURL)
	require.Error(t, err)

	// No fallback when the primary itself cannot run.
	secondary.AssertNotCalled(t, "Classify", mock.Anything)
	source.AssertNumberOfCalls(t, "FetchTensor", 1)
}

func TestPredict_SecondaryFetchErrorIsFatal(t *testing.T) {
	primary := &stubStage{width: 224, height: 224}
	secondary := &stubStage{width: 336, height: 224}
	source := &stubSource{}

	source.On("FetchTensor", mock.Anything, spawnURL, 224, 224).Return(testTensor(224, 224), nil).Once()
	source.On("FetchTensor", mock.Anything, spawnURL, 336, 224).
		Return(nil, &imaging.FetchError{Kind: imaging.KindTimeout, URL: spawnURL}).Once()
	primary.On("Classify", mock.Anything).Return("Eevee", 0.40, nil).Once()

	p := newCascade(primary, secondary, source)

	_, _, err := p.Predict(context.Background(), spawnURL)
	require.Error(t, err)

	_, ok := p.cache.Get(Fingerprint(spawnURL))
	assert.False(t, ok)
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "85.34%", formatConfidence(0.8534))
	assert.Equal(t, "92.00%", formatConfidence(0.92))
	assert.Equal(t, "100.00%", formatConfidence(1))
	assert.Equal(t, "0.00%", formatConfidence(0))
}
