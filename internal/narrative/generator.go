package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/vinsight/internal/engine"
	"github.com/kalambet/vinsight/internal/vehicle"
)

// DefaultTimeout bounds one generation call, retries included.
const DefaultTimeout = 60 * time.Second

// Chatter is the part of an inference engine the generator needs.
type Chatter interface {
	Chat(ctx context.Context, messages []engine.Message, jsonSchema *engine.Schema) (string, error)
	Name() string
}

// Generator produces insight artifacts for aggregates. It never fails: when
// the model is unreachable or its answer cannot be read, a fallback or a
// degraded artifact is returned instead.
type Generator struct {
	chat    Chatter
	timeout time.Duration
	now     func() time.Time
}

// New creates a Generator. A nil chat makes every call use the fallback
// template. A non-positive timeout selects DefaultTimeout.
func New(chat Chatter, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{chat: chat, timeout: timeout, now: time.Now}
}

// ModelVersion is the identifier stamped on successful artifacts.
func (g *Generator) ModelVersion() string {
	if g.chat == nil {
		return FallbackModelVersion
	}
	return g.chat.Name()
}

// Generate returns an artifact for agg with generated_at and model_version
// set. Error artifacts have Error=true and must not be cached.
func (g *Generator) Generate(ctx context.Context, agg *vehicle.Aggregate) (out Artifact) {
	log := slog.With("vehicle_id", agg.Basic.ID, "vrm", agg.Basic.VRM)
	defer func() {
		if r := recover(); r != nil {
			log.Error("insight generation panicked, using fallback", "stage", "chat", "panic", r)
			out = Fallback(agg, g.now())
		}
	}()

	a, err := g.generate(ctx, agg)
	switch {
	case err == nil:
		log.Info("insights generated", "model", a.ModelVersion)
		return a
	case errors.Is(err, ErrMalformedOutput):
		var mo *malformedError
		raw := ""
		if errors.As(err, &mo) {
			raw = mo.raw
		}
		log.Warn("insight generation returned unreadable output", "stage", "parse", "error", err)
		d := Degraded(raw)
		d.GeneratedAt = g.now().UTC()
		d.ModelVersion = g.ModelVersion()
		return d
	default:
		log.Warn("insight generation failed, using fallback", "stage", "chat", "error", err)
		return Fallback(agg, g.now())
	}
}

// malformedError carries the raw completion alongside ErrMalformedOutput.
type malformedError struct {
	raw string
	err error
}

func (e *malformedError) Error() string { return e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func (g *Generator) generate(ctx context.Context, agg *vehicle.Aggregate) (Artifact, error) {
	if g.chat == nil {
		return Artifact{}, fmt.Errorf("%w: no engine configured", ErrTransient)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.chat.Chat(ctx, BuildMessages(agg), artifactSchema())
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if strings.TrimSpace(raw) == "" {
		return Artifact{}, fmt.Errorf("%w: empty completion", ErrTransient)
	}

	a, err := Parse(raw)
	if err != nil {
		return Artifact{}, &malformedError{raw: raw, err: err}
	}
	a.GeneratedAt = g.now().UTC()
	a.ModelVersion = g.chat.Name()
	a.Cached = false
	a.Error = false
	a.ErrorKind = ""
	return a, nil
}
