// internal/resolver/resolver.go
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/browser"
)

const (
	StrategyStructural  = "structural"
	StrategyLabel       = "label"
	StrategyPlaceholder = "placeholder"
)

const (
	defaultStructuralTimeout = 5 * time.Second
	defaultSemanticTimeout   = time.Second
)

// FindFunc runs one strategy against a page. A miss is (Element{}, false, nil).
type FindFunc func(ctx context.Context, page browser.Page, loc Locator, timeout time.Duration) (browser.Element, bool, error)

// Strategy is one entry of the ordered fallback list.
type Strategy struct {
	Name string
	Find FindFunc
	// Semantic strategies use the shorter per-candidate timeout.
	Semantic bool
}

// DefaultStrategies returns structural, then label, then placeholder lookup.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyStructural, Find: findStructural},
		{Name: StrategyLabel, Find: findByLabel, Semantic: true},
		{Name: StrategyPlaceholder, Find: findByPlaceholder, Semantic: true},
	}
}

func findStructural(ctx context.Context, page browser.Page, loc Locator, timeout time.Duration) (browser.Element, bool, error) {
	if len(loc.Structural) == 0 {
		return browser.Element{}, false, nil
	}
	return page.Query(ctx, loc.StructuralGroup(), timeout)
}

func findByLabel(ctx context.Context, page browser.Page, loc Locator, timeout time.Duration) (browser.Element, bool, error) {
	return firstCandidate(ctx, loc.Labels, timeout, page.FindByLabel)
}

func findByPlaceholder(ctx context.Context, page browser.Page, loc Locator, timeout time.Duration) (browser.Element, bool, error) {
	return firstCandidate(ctx, loc.Placeholders, timeout, page.FindByPlaceholder)
}

func firstCandidate(
	ctx context.Context,
	candidates []string,
	timeout time.Duration,
	find func(context.Context, string, time.Duration) (browser.Element, bool, error),
) (browser.Element, bool, error) {
	var firstErr error
	for _, text := range candidates {
		el, found, err := find(ctx, text, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return browser.Element{}, false, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found {
			return el, true, nil
		}
	}
	return browser.Element{}, false, firstErr
}

// Result is the outcome of a resolution. Found is false for NotFound.
type Result struct {
	Found    bool
	Element  browser.Element
	Strategy string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the fallback order.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithTimeouts sets the structural wait and the per-candidate wait used by the
// label and placeholder strategies.
func WithTimeouts(structural, semantic time.Duration) Option {
	return func(r *Resolver) {
		if structural > 0 {
			r.structuralTimeout = structural
		}
		if semantic > 0 {
			r.semanticTimeout = semantic
		}
	}
}

// Resolver locates form controls on a page whose markup is not known in advance.
type Resolver struct {
	page              browser.Page
	logger            *zap.Logger
	strategies        []Strategy
	structuralTimeout time.Duration
	semanticTimeout   time.Duration
}

// New creates a resolver bound to one page.
func New(page browser.Page, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		page:              page,
		logger:            logger.Named("resolver"),
		strategies:        DefaultStrategies(),
		structuralTimeout: defaultStructuralTimeout,
		semanticTimeout:   defaultSemanticTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks the strategies in order and returns the first visible match.
// Lookup errors are logged and treated as a miss; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, locator string) Result {
	loc := ParseLocator(locator)
	if loc.Empty() {
		r.logger.Debug("Empty locator.", zap.String("locator", locator))
		return Result{}
	}

	for _, s := range r.strategies {
		if ctx.Err() != nil {
			return Result{}
		}
		timeout := r.structuralTimeout
		if s.Semantic {
			timeout = r.semanticTimeout
		}
		el, found, err := s.Find(ctx, r.page, loc, timeout)
		if err != nil {
			r.logger.Debug("Locator strategy failed.",
				zap.String("strategy", s.Name),
				zap.String("locator", locator),
				zap.Error(err))
			continue
		}
		if found {
			return Result{Found: true, Element: el, Strategy: s.Name}
		}
	}
	return Result{}
}
