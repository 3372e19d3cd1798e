package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jwebster45206/village-mystery/pkg/intent"
	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

// classification is the final answer of the classify_intent call. Validate
// performs the full tagged-union decode so a bad payload is retried by the
// oracle like any other malformed reply.
type classification struct {
	Status  string         `json:"status"`
	Content map[string]any `json:"content"`

	decoded intent.Intent
}

func (c *classification) Validate() error {
	if c.Status == "" {
		return errors.New("status is required")
	}
	if c.Content == nil {
		return errors.New("content is required")
	}
	in, err := intent.Decode(c.Status, c.Content)
	if err != nil {
		return err
	}
	c.decoded = in
	return nil
}

// Classifier turns raw player text into a tagged Intent.
type Classifier struct {
	oracle oracle.Asker
	logger *slog.Logger
}

// New creates a classifier.
func New(asker oracle.Asker, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{oracle: asker, logger: logger}
}

// Classify asks the oracle which intent the player's text expresses. A reply
// that does not decode fails with oracle.ErrMalformedResponse; nothing is
// defaulted.
func (c *Classifier) Classify(ctx context.Context, text string, ws world.WorldState) (intent.Intent, error) {
	msgs, err := prompts.New().
		WithTask(prompts.TaskClassify, prompts.ClassifyData{World: ws, NPCs: intent.NPCs}).
		WithUserMessage(text).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build classification prompt: %w", err)
	}

	var out classification
	if err := c.oracle.Ask(ctx, prompts.TaskClassify, msgs, &out); err != nil {
		return nil, fmt.Errorf("failed to classify input: %w", err)
	}

	c.logger.Debug("Classified player input",
		"kind", out.decoded.Kind(),
		"location", ws.Location)
	return out.decoded, nil
}
