package predict

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/vagangabrain/Optimised-jess/internal/artifact"
	"github.com/vagangabrain/Optimised-jess/internal/config"
	"github.com/vagangabrain/Optimised-jess/internal/imaging"
	"github.com/vagangabrain/Optimised-jess/internal/inference"
)

// Artifact file names inside the remote repository and the local cache.
// The secondary graph keeps its weights in a separate split file.
const (
	primaryModelFile     = "pokemon_cnn_v2.onnx"
	primaryLabelsFile    = "labels_v2.json"
	secondaryModelFile   = "poketwo_pokemon_model.onnx"
	secondaryWeightsFile = "poketwo_pokemon_model.onnx.data"
	secondaryMetaFile    = "model_metadata.json"
)

// The primary stage has a fixed input geometry; the secondary's comes from
// its own metadata at load time.
const (
	primaryWidth  = 224
	primaryHeight = 224
)

// classifier is one loaded cascade stage.
type classifier interface {
	Classify(t *imaging.Tensor) (label string, prob float64, err error)
	InputSize() (width, height int)
}

// tensorSource fetches and normalizes an image for a stage.
type tensorSource interface {
	FetchTensor(ctx context.Context, url string, width, height int) (*imaging.Tensor, error)
}

// Thresholds are the cascade acceptance bars, in percent. The secondary
// bar is deliberately higher: the secondary model only overrides the
// primary when it is very confident; otherwise the primary's guess stands
// even below its own bar.
type Thresholds struct {
	Primary   float64
	Secondary float64
}

// Predictor runs the two-stage classification cascade. One Predictor is
// shared by all callers; its cache, stages and CDN gate are the only
// cross-request state.
type Predictor struct {
	cache     *Cache
	fetcher   tensorSource
	artifacts *artifact.Fetcher
	cacheDir  string
	baseURL   string

	mu          sync.Mutex // guards initialization and thresholds
	initialized bool
	primary     classifier
	secondary   classifier
	thresholds  Thresholds
}

// New wires a Predictor from its configuration. The HTTP client is
// injected; nothing here reaches for ambient global state.
func New(client *http.Client, cfg *config.Config) *Predictor {
	return &Predictor{
		cache: NewCache(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		fetcher: imaging.NewFetcher(client, imaging.Options{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			BackoffBase:    time.Duration(cfg.Fetch.BackoffMS) * time.Millisecond,
			CDNConcurrency: cfg.Fetch.CDNConcurrency,
			CDNMinInterval: time.Duration(cfg.Fetch.CDNMinIntervalMS) * time.Millisecond,
		}),
		artifacts: artifact.NewFetcher(client, config.ResolveToken(cfg)),
		cacheDir:  config.ResolveCacheDir(cfg),
		baseURL:   cfg.Artifacts.BaseURL,
		thresholds: Thresholds{
			Primary:   cfg.Prediction.PrimaryThreshold,
			Secondary: cfg.Prediction.SecondaryThreshold,
		},
	}
}

// Apply updates the tunables that may change on a config reload.
func (p *Predictor) Apply(cfg *config.Config) {
	p.mu.Lock()
	p.thresholds = Thresholds{
		Primary:   cfg.Prediction.PrimaryThreshold,
		Secondary: cfg.Prediction.SecondaryThreshold,
	}
	p.mu.Unlock()

	p.cache.SetLimits(cfg.Cache.MaxSize, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
}

// Predict classifies the image at url, returning the label and a
// percent-formatted confidence such as "92.00%".
func (p *Predictor) Predict(ctx context.Context, url string) (string, string, error) {
	key := Fingerprint(url)
	if cached, ok := p.cache.Get(key); ok {
		slog.Debug("Prediction served from cache", "url", url, "name", cached.Name, "source", cached.Source)
		return cached.Name, cached.Confidence, nil
	}

	if err := p.ensureInitialized(ctx); err != nil {
		return "", "", err
	}

	thresholds := p.currentThresholds()

	width, height := p.primary.InputSize()
	tensor, err := p.fetcher.FetchTensor(ctx, url, width, height)
	if err != nil {
		return "", "", err
	}

	primaryName, primaryProb, err := p.primary.Classify(tensor)
	tensor.Release()
	if err != nil {
		return "", "", fmt.Errorf("primary inference: %w", err)
	}

	if primaryProb*100 >= thresholds.Primary {
		return p.finish(key, url, Result{
			Name:       primaryName,
			Confidence: formatConfidence(primaryProb),
			Source:     SourcePrimary,
		})
	}

	width, height = p.secondary.InputSize()
	tensor, err = p.fetcher.FetchTensor(ctx, url, width, height)
	if err != nil {
		return "", "", err
	}

	secondaryName, secondaryProb, err := p.secondary.Classify(tensor)
	tensor.Release()
	if err != nil {
		return "", "", fmt.Errorf("secondary inference: %w", err)
	}

	if secondaryProb*100 >= thresholds.Secondary {
		return p.finish(key, url, Result{
			Name:       secondaryName,
			Confidence: formatConfidence(secondaryProb),
			Source:     SourceSecondary,
		})
	}

	// The secondary did not clear its bar; its guess is discarded and the
	// primary's still-best-available answer stands.
	return p.finish(key, url, Result{
		Name:       primaryName,
		Confidence: formatConfidence(primaryProb),
		Source:     SourcePrimaryFallback,
	})
}

// finish caches a result and unpacks it for the caller.
func (p *Predictor) finish(key, url string, result Result) (string, string, error) {
	p.cache.Set(key, result)
	slog.Info("Prediction complete",
		"url", url, "name", result.Name, "confidence", result.Confidence, "source", result.Source)
	return result.Name, result.Confidence, nil
}

func (p *Predictor) currentThresholds() Thresholds {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.thresholds
}

// formatConfidence renders a probability as a two-decimal percentage.
func formatConfidence(prob float64) string {
	return fmt.Sprintf("%.2f%%", prob*100)
}

// ensureInitialized downloads the artifacts and loads both stages once.
// A failed initialization leaves the flag unset so the next caller
// retries; predictions are never served from a half-initialized set.
func (p *Predictor) ensureInitialized(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	slog.Info("Initializing prediction models", "cache_dir", p.cacheDir)

	if err := p.artifacts.EnsureCached(ctx, p.artifactSet()); err != nil {
		return fmt.Errorf("failed to fetch model artifacts: %w", err)
	}

	primaryLabels, err := inference.LoadLabels(filepath.Join(p.cacheDir, primaryLabelsFile))
	if err != nil {
		return fmt.Errorf("failed to load primary labels: %w", err)
	}

	meta, err := inference.LoadMetadata(filepath.Join(p.cacheDir, secondaryMetaFile))
	if err != nil {
		return fmt.Errorf("failed to load secondary metadata: %w", err)
	}

	primary, err := inference.NewStage(
		filepath.Join(p.cacheDir, primaryModelFile), primaryLabels, primaryWidth, primaryHeight)
	if err != nil {
		return fmt.Errorf("failed to load primary model: %w", err)
	}

	secondary, err := inference.NewStage(
		filepath.Join(p.cacheDir, secondaryModelFile), meta.ClassNames, meta.ImageWidth, meta.ImageHeight)
	if err != nil {
		primary.Close()
		return fmt.Errorf("failed to load secondary model: %w", err)
	}

	p.primary = primary
	p.secondary = secondary
	p.initialized = true

	slog.Info("Prediction models ready",
		"primary_classes", len(primaryLabels),
		"secondary_classes", len(meta.ClassNames),
		"secondary_input", fmt.Sprintf("%dx%d", meta.ImageWidth, meta.ImageHeight))
	return nil
}

// artifactSet lists the five files the cascade needs.
func (p *Predictor) artifactSet() []artifact.File {
	names := []string{
		primaryModelFile,
		primaryLabelsFile,
		secondaryModelFile,
		secondaryWeightsFile,
		secondaryMetaFile,
	}

	files := make([]artifact.File, 0, len(names))
	for _, name := range names {
		files = append(files, artifact.File{
			URL:  p.baseURL + "/" + name,
			Path: filepath.Join(p.cacheDir, name),
		})
	}
	return files
}
