// Package engine ties the pricing core to storage, caching and the optional
// outside collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/budget"
	"github.com/Simplici0/studio-quotes/internal/cache"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/logger"
	"github.com/Simplici0/studio-quotes/internal/mailer"
	"github.com/Simplici0/studio-quotes/internal/metrics"
	"github.com/Simplici0/studio-quotes/internal/pricing"
	"github.com/Simplici0/studio-quotes/internal/proposal"
	"github.com/Simplici0/studio-quotes/internal/render"
	"github.com/Simplici0/studio-quotes/internal/store"
)

var (
	ErrNotFound    = errors.New("assessment not found")
	ErrNoRecipient = errors.New("assessment has no client email")
	ErrUnavailable = errors.New("collaborator not configured")
	ErrConflict    = errors.New("assessment is being updated concurrently")
)

// updateAttempts bounds how often UpdateFeatures reloads after losing a
// version race.
const updateAttempts = 3

// Store persists assessment records. Update must fail with
// store.ErrConflict when the stored version is not prevVersion.
type Store interface {
	Load(ctx context.Context, id string) (store.Record, error)
	Save(ctx context.Context, rec store.Record) error
	Update(ctx context.Context, rec store.Record, prevVersion int) error
	List(ctx context.Context, q store.Query) ([]store.Summary, error)
}

// Cache holds computed breakdowns.
type Cache interface {
	GetPricing(ctx context.Context, key cache.Key) (pricing.Breakdown, bool, error)
	SetPricing(ctx context.Context, key cache.Key, b pricing.Breakdown) error
	Invalidate(ctx context.Context, assessmentID string) error
}

// Suggester produces free text for a proposal's special notes.
type Suggester interface {
	Suggest(ctx context.Context, a assessment.Answers) (string, error)
}

// Mailer delivers a rendered proposal.
type Mailer interface {
	Send(ctx context.Context, m mailer.Message) (string, error)
}

// PDFConverter prints HTML to PDF.
type PDFConverter interface {
	PDF(ctx context.Context, html string) ([]byte, error)
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithCache stores computed breakdowns in c. Without it every lookup misses.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithSuggester enables AI suggestions on proposals that ask for them.
func WithSuggester(sg Suggester) Option { return func(s *Service) { s.suggester = sg } }

// WithMailer enables EmailProposal.
func WithMailer(m Mailer) Option { return func(s *Service) { s.mailer = m } }

// WithPDFConverter enables ProposalPDF.
func WithPDFConverter(p PDFConverter) Option { return func(s *Service) { s.pdf = p } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(next func() string) Option { return func(s *Service) { s.newID = next } }

// Service is safe for concurrent use; it holds no mutable state of its own.
type Service struct {
	store     Store
	cache     Cache
	suggester Suggester
	mailer    Mailer
	pdf       PDFConverter
	catalog   *catalog.Catalog
	logger    logger.Logger
	now       func() time.Time
	newID     func() string
	assembler *proposal.Assembler
}

// New returns a Service pricing against c. Without a mailer or PDF converter
// the operations that need one fail with ErrUnavailable.
func New(st Store, c *catalog.Catalog, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		cache:   cache.Noop{},
		catalog: c,
		logger:  log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.assembler = proposal.NewAssembler(c, proposal.WithClock(s.now))
	return s
}

// Catalog returns the catalog every price is computed against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Submit stores a new assessment at version 1 with its pricing.
func (s *Service) Submit(ctx context.Context, a assessment.Answers) (store.Record, error) {
	b, err := s.compute(a, "submit")
	if err != nil {
		return store.Record{}, err
	}

	now := s.now().UTC()
	rec := store.Record{
		ID:        s.newID(),
		Version:   1,
		Answers:   a,
		Pricing:   &b,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return store.Record{}, fmt.Errorf("submit assessment: %w", err)
	}

	s.logger.Info("assessment submitted", map[string]interface{}{
		"assessmentId": rec.ID,
		"projectType":  b.ProjectType,
		"finalTotal":   b.FinalTotal,
	})
	return rec, nil
}

// Get loads an assessment. A missing id yields ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (store.Record, error) {
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get assessment %s: %w", id, err)
	}
	return rec, nil
}

// List returns stored assessment summaries, newest first.
func (s *Service) List(ctx context.Context, q store.Query) ([]store.Summary, error) {
	rows, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return rows, nil
}

// UpdateFeatures replaces the must-have features and recomputes the whole
// breakdown. Each stored version is written exactly once; an update that
// loses the race reloads and reapplies, and gives up with ErrConflict after
// updateAttempts tries.
func (s *Service) UpdateFeatures(ctx context.Context, id string, features []string) (store.Record, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return store.Record{}, err
		}

		prev := rec.Version
		rec.Answers = rec.Answers.WithFeatures(features)
		b, err := s.compute(rec.Answers, "update")
		if err != nil {
			return store.Record{}, err
		}
		rec.Version++
		rec.Pricing = &b
		rec.UpdatedAt = s.now().UTC()

		err = s.store.Update(ctx, rec, prev)
		if errors.Is(err, store.ErrConflict) {
			if attempt < updateAttempts {
				s.logger.Debug("feature update lost a version race; retrying", map[string]interface{}{
					"assessmentId": id,
					"version":      prev,
					"attempt":      attempt,
				})
				continue
			}
			return store.Record{}, fmt.Errorf("%w: %s", ErrConflict, id)
		}
		if err != nil {
			return store.Record{}, fmt.Errorf("update features of %s: %w", id, err)
		}

		if err := s.cache.Invalidate(ctx, id); err != nil {
			metrics.CollaboratorErrors.WithLabelValues("cache").Inc()
			s.logger.WithError(err).Warn("cache invalidation failed", map[string]interface{}{"assessmentId": id})
		}

		s.logger.Info("assessment features updated", map[string]interface{}{
			"assessmentId": id,
			"version":      rec.Version,
			"features":     len(features),
			"finalTotal":   b.FinalTotal,
		})
		return rec, nil
	}
}

// Pricing returns the breakdown of the current version. A stored breakdown
// made with another catalog version is recomputed.
func (s *Service) Pricing(ctx context.Context, id string) (pricing.Breakdown, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return s.pricingFor(ctx, rec)
}

func (s *Service) pricingFor(ctx context.Context, rec store.Record) (pricing.Breakdown, error) {
	key := cache.Key{AssessmentID: rec.ID, Version: rec.Version, CatalogVersion: s.catalog.Version}

	b, ok, err := s.cache.GetPricing(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("pricing cache lookup failed", map[string]interface{}{"key": key.String()})
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return b, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	if rec.Pricing != nil && rec.Pricing.CatalogVersion == s.catalog.Version {
		b = *rec.Pricing
	} else {
		b, err = s.compute(rec.Answers, "recompute")
		if err != nil {
			return pricing.Breakdown{}, err
		}
	}

	if err := s.cache.SetPricing(ctx, key, b); err != nil {
		metrics.CollaboratorErrors.WithLabelValues("cache").Inc()
		s.logger.WithError(err).Warn("pricing cache store failed", map[string]interface{}{"key": key.String()})
	}
	return b, nil
}

// Comparison compares the current pricing with the client's budget range.
func (s *Service) Comparison(ctx context.Context, id string) (budget.Comparison, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return budget.Comparison{}, err
	}
	b, err := s.pricingFor(ctx, rec)
	if err != nil {
		return budget.Comparison{}, err
	}

	cmp := budget.Compare(b, rec.Answers.Budget, s.catalog)
	metrics.BudgetAlignment.WithLabelValues(cmp.Alignment.Status).Inc()
	return cmp, nil
}

// ComparisonText renders Comparison as plain text for staff.
func (s *Service) ComparisonText(ctx context.Context, id string) (string, error) {
	cmp, err := s.Comparison(ctx, id)
	if err != nil {
		return "", err
	}
	return render.ComparisonText(cmp), nil
}

// AdminText renders the assessment and its pricing for staff.
func (s *Service) AdminText(ctx context.Context, id string) (string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	b, err := s.pricingFor(ctx, rec)
	if err != nil {
		return "", err
	}
	return render.AssessmentText(rec.Answers, &b), nil
}

func (s *Service) compute(a assessment.Answers, trigger string) (pricing.Breakdown, error) {
	start := time.Now()
	b := pricing.Compute(a, s.catalog)
	metrics.CalculationDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	metrics.CalculationsTotal.WithLabelValues(trigger).Inc()

	if !b.Consistent() {
		return pricing.Breakdown{}, fmt.Errorf("pricing for %q is inconsistent: final %d, expected %d",
			a.ProjectName, b.FinalTotal, b.ExpectedTotal())
	}
	metrics.QuotedTotal.WithLabelValues(b.ProjectType).Observe(float64(b.FinalTotal) / 100)
	return b, nil
}
