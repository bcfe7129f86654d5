package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudidian/mailsort/internal/category"
	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
)

// Predictor is a trained classification model. Training and loading are
// external concerns; the classifier only consumes the predict function.
// Predict returns the predicted category name for the raw concatenated
// message text.
type Predictor interface {
	Predict(ctx context.Context, text string) (string, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(ctx context.Context, text string) (string, error)

// Predict implements Predictor.
func (f PredictorFunc) Predict(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// rule is one entry of the deterministic pass: a category matches when at
// least threshold distinct keywords from its set occur in the text.
type rule struct {
	category  string
	threshold int
}

// Rule priority order. First match wins; evaluation stops there.
var rules = []rule{
	{category: "spam", threshold: 2},
	{category: "security", threshold: 2},
	{category: "finance", threshold: 1},
	{category: "promotion", threshold: 2},
	{category: "work", threshold: 2},
}

// Classifier assigns categories to messages using the static catalog's
// keyword sets and an optional predictor.
type Classifier struct {
	catalog   *category.Catalog
	predictor Predictor
	logger    *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPredictor attaches a trained model for BALANCED/ACCURATE fallback.
func WithPredictor(p Predictor) Option {
	return func(c *Classifier) { c.predictor = p }
}

// WithLogger sets the logger used for model failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// New creates a Classifier over the given catalog.
func New(catalog *category.Catalog, opts ...Option) *Classifier {
	c := &Classifier{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the category name for a message. It always succeeds.
func (c *Classifier) Classify(ctx context.Context, subject, sender, body string, mode model.ModelMode) string {
	text := strings.ToLower(subject + " " + body + " " + sender)

	if name, ok := c.ruleMatch(text); ok {
		return name
	}

	if mode != model.ModeFast && c.predictor != nil {
		if name, ok := c.predict(ctx, text); ok {
			return name
		}
	}

	return category.Fallback
}

// ruleMatch runs the fixed-priority deterministic pass.
func (c *Classifier) ruleMatch(text string) (string, bool) {
	for _, r := range rules {
		cat, ok := c.catalog.ByName(r.category)
		if !ok {
			continue
		}
		if keywordHits(text, cat.Keywords) >= r.threshold {
			return r.category, true
		}
	}
	return "", false
}

// predict consults the trained model. Any model error, or a prediction
// naming an unknown category, degrades to "no prediction" and never fails
// the caller.
func (c *Classifier) predict(ctx context.Context, text string) (string, bool) {
	name, err := c.predictor.Predict(ctx, text)
	if err != nil {
		c.logger.Warn("model prediction failed", logging.Err(err))
		return "", false
	}
	if _, ok := c.catalog.ByName(name); !ok {
		return "", false
	}
	return name, true
}

// keywordHits counts how many distinct keywords occur in text.
func keywordHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}
