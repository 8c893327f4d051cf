// internal/form/populator.go
package form

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/browser"
	"github.com/Enroleai/Uni-Automation/internal/resolver"
)

// FieldValue is one (field, value, kind) tuple to fill.
type FieldValue struct {
	Name    string
	Locator string
	Value   string
	Kind    schemas.ValueKind
}

// Resolver is the lookup the populator depends on.
type Resolver interface {
	Resolve(ctx context.Context, locator string) resolver.Result
}

// Jitter bounds the pause inserted after each successful fill.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// Populator fills a set of fields on one page.
type Populator struct {
	page     browser.Page
	resolver Resolver
	jitter   Jitter
	logger   *zap.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPopulator creates a populator for page.
func NewPopulator(page browser.Page, res Resolver, jitter Jitter, logger *zap.Logger) *Populator {
	if jitter.Max < jitter.Min {
		jitter.Max = jitter.Min
	}
	return &Populator{
		page:     page,
		resolver: res,
		jitter:   jitter,
		logger:   logger.Named("populator"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Populator) pause() time.Duration {
	span := p.jitter.Max - p.jitter.Min
	if span <= 0 {
		return p.jitter.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jitter.Min + time.Duration(p.rng.Int63n(int64(span)+1))
}

// Fill resolves and fills every field in order. It never stops early on a
// field failure; a cancelled context marks the remaining fields as skipped.
func (p *Populator) Fill(ctx context.Context, fields []FieldValue) *schemas.FillReport {
	report := &schemas.FillReport{}
	for _, f := range fields {
		res := schemas.FieldResult{Field: f.Name, Kind: f.Kind}
		log := p.logger.With(zap.String("field", f.Name))

		if err := ctx.Err(); err != nil {
			res.Status = schemas.FillSkipped
			res.Error = err.Error()
			report.Add(res)
			continue
		}
		if f.Value == "" {
			res.Status = schemas.FillSkipped
			report.Add(res)
			continue
		}

		found := p.resolver.Resolve(ctx, f.Locator)
		if !found.Found {
			log.Warn("Could not find field.", zap.String("locator", f.Locator))
			res.Status = schemas.FillNotFound
			report.Add(res)
			continue
		}
		res.Strategy = found.Strategy

		if err := p.assign(ctx, found.Element, f); err != nil {
			log.Warn("Could not fill field.", zap.String("element", found.Element.Description), zap.Error(err))
			res.Status = schemas.FillUnfillable
			res.Error = err.Error()
			report.Add(res)
			continue
		}
		res.Status = schemas.FillFilled
		report.Add(res)
		log.Debug("Filled field.", zap.String("strategy", found.Strategy))

		if err := p.sleep(ctx, p.pause()); err != nil {
			log.Debug("Pause interrupted.", zap.Error(err))
		}
	}
	return report
}

func (p *Populator) assign(ctx context.Context, el browser.Element, f FieldValue) error {
	switch f.Kind {
	case schemas.KindSelect:
		return p.page.SelectOption(ctx, el, f.Value)
	case schemas.KindDate, schemas.KindText, "":
		return p.page.Fill(ctx, el, f.Value)
	default:
		return errors.New("unsupported value kind " + string(f.Kind))
	}
}

// BuildValues pairs a field mapping with the values available for it, in
// mapping order. Overrides take precedence over values. Fields with no value
// are kept with an empty Value so they are reported as skipped.
func BuildValues(mapping schemas.FieldMapping, values, overrides map[string]string) []FieldValue {
	out := make([]FieldValue, 0, len(mapping))
	for _, spec := range mapping {
		v, ok := overrides[spec.Name]
		if !ok {
			v = values[spec.Name]
		}
		kind := spec.Kind
		if kind == "" {
			kind = schemas.InferValueKind(spec.Name)
		}
		out = append(out, FieldValue{
			Name:    spec.Name,
			Locator: spec.Locator,
			Value:   v,
			Kind:    kind,
		})
	}
	return out
}
