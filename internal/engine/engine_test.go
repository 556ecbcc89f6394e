package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/budget"
	"github.com/Simplici0/studio-quotes/internal/cache"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/logger"
	"github.com/Simplici0/studio-quotes/internal/mailer"
	"github.com/Simplici0/studio-quotes/internal/pricing"
	"github.com/Simplici0/studio-quotes/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]store.Record
	saves   int

	// written holds every version accepted by Update, per id.
	written map[string][]int
	// beforeUpdate runs once, ahead of the next Update.
	beforeUpdate func()
	// conflicts forces that many Update calls to fail.
	conflicts int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]store.Record{}, written: map[string][]int{}}
}

func (m *memStore) Load(_ context.Context, id string) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Save(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	m.saves++
	return nil
}

func (m *memStore) Update(_ context.Context, rec store.Record, prevVersion int) error {
	m.mu.Lock()
	hook := m.beforeUpdate
	m.beforeUpdate = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return store.ErrConflict
	}
	cur, ok := m.records[rec.ID]
	if !ok || cur.Version != prevVersion {
		return store.ErrConflict
	}
	m.records[rec.ID] = rec
	m.written[rec.ID] = append(m.written[rec.ID], rec.Version)
	return nil
}

func (m *memStore) List(_ context.Context, q store.Query) ([]store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Summary
	for _, rec := range m.records {
		if q.Text != "" && !strings.Contains(strings.ToLower(rec.Answers.ProjectName), strings.ToLower(q.Text)) {
			continue
		}
		out = append(out, store.Summary{ID: rec.ID, ProjectName: rec.Answers.ProjectName, CreatedAt: rec.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeCache struct {
	entries map[string]pricing.Breakdown
	getErr  error
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]pricing.Breakdown{}}
}

func (f *fakeCache) GetPricing(_ context.Context, key cache.Key) (pricing.Breakdown, bool, error) {
	if f.getErr != nil {
		return pricing.Breakdown{}, false, f.getErr
	}
	b, ok := f.entries[key.String()]
	if ok {
		f.hits++
	}
	return b, ok, nil
}

func (f *fakeCache) SetPricing(_ context.Context, key cache.Key, b pricing.Breakdown) error {
	f.entries[key.String()] = b
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, id string) error {
	for k := range f.entries {
		if strings.HasPrefix(k, "pricing:"+id+":") {
			delete(f.entries, k)
		}
	}
	return nil
}

type fakeSuggester struct {
	text  string
	err   error
	calls int
}

func (f *fakeSuggester) Suggest(context.Context, assessment.Answers) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m mailer.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, m)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

type fakePDF struct {
	html string
}

func (f *fakePDF) PDF(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.4"), nil
}

var fixedNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *memStore) {
	t.Helper()
	st := newMemStore()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("a-%d", n) }),
	}
	return New(st, catalog.Default(), logger.NewTestLogger(t), append(base, opts...)...), st
}

func portalAnswers() assessment.Answers {
	return assessment.Answers{
		ProjectName:      "Client portal",
		ProjectType:      "webapp",
		MustHaveFeatures: []string{"user-auth", "payments"},
		Platform:         []string{"web"},
		Budget:           "5-10k",
		ClientName:       "Dana",
		ClientEmail:      "dana@example.test",
	}
}

func TestSubmit(t *testing.T) {
	svc, st := newTestService(t)

	rec, err := svc.Submit(context.Background(), portalAnswers())
	require.NoError(t, err)

	assert.Equal(t, "a-1", rec.ID)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	require.NotNil(t, rec.Pricing)
	assert.Equal(t, int64(800000), rec.Pricing.FinalTotal)
	assert.True(t, rec.Pricing.Consistent())
	assert.Equal(t, 1, st.saves)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	rows, err := svc.List(ctx, store.Query{Text: "portal"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Client portal", rows[0].ProjectName)
}

func TestUpdateFeatures_RecomputesAndInvalidates(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newTestService(t, WithCache(fc))
	ctx := context.Background()

	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)
	_, err = svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, fc.entries, 1)

	updated, err := svc.UpdateFeatures(ctx, rec.ID, []string{"user-auth"})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{"user-auth"}, updated.Answers.MustHaveFeatures)
	assert.Less(t, updated.Pricing.FinalTotal, rec.Pricing.FinalTotal)
	assert.Empty(t, fc.entries)

	b, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Pricing.FinalTotal, b.FinalTotal)
}

func TestUpdateFeatures_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateFeatures(context.Background(), "missing", []string{"chat"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFeatures_InterleavedUpdatesGetDistinctVersions(t *testing.T) {
	fc := newFakeCache()
	svc, st := newTestService(t, WithCache(fc))
	ctx := context.Background()

	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	var racer store.Record
	st.beforeUpdate = func() {
		var err error
		racer, err = svc.UpdateFeatures(ctx, rec.ID, []string{"chat"})
		require.NoError(t, err)
		_, err = svc.Pricing(ctx, rec.ID)
		require.NoError(t, err)
	}

	updated, err := svc.UpdateFeatures(ctx, rec.ID, []string{"user-auth"})
	require.NoError(t, err)

	assert.Equal(t, 2, racer.Version)
	assert.Equal(t, 3, updated.Version)
	assert.Equal(t, []int{2, 3}, st.written[rec.ID])

	stored, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)
	assert.Equal(t, []string{"user-auth"}, stored.Answers.MustHaveFeatures)

	b, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Pricing.FinalTotal, b.FinalTotal)
	assert.NotEqual(t, racer.Pricing.FinalTotal, b.FinalTotal)
	_, stale := fc.entries[cache.Key{AssessmentID: rec.ID, Version: 2, CatalogVersion: catalog.Default().Version}.String()]
	assert.False(t, stale, "the racing version's cache entry must be invalidated")
}

func TestUpdateFeatures_ConcurrentCallersNeverShareAVersion(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateFeatures(ctx, rec.ID, []string{"chat"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}

	written := st.written[rec.ID]
	assert.Len(t, written, ok)
	for i, v := range written {
		assert.Equal(t, i+2, v)
	}
}

func TestUpdateFeatures_GivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	st.conflicts = updateAttempts
	_, err = svc.UpdateFeatures(ctx, rec.ID, []string{"chat"})
	assert.ErrorIs(t, err, ErrConflict)

	stored, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestPricing_CachesByVersion(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newTestService(t, WithCache(fc))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	first, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	second, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, first.FinalTotal, second.FinalTotal)
	assert.Equal(t, 1, fc.hits)
	_, ok := fc.entries[cache.Key{AssessmentID: rec.ID, Version: 1, CatalogVersion: catalog.Default().Version}.String()]
	assert.True(t, ok)
}

func TestPricing_RecomputesStaleCatalogVersion(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	stale := *rec.Pricing
	stale.CatalogVersion = "2019.1"
	stale.FinalTotal = 1
	rec.Pricing = &stale
	require.NoError(t, st.Save(ctx, rec))

	b, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Version, b.CatalogVersion)
	assert.Equal(t, int64(800000), b.FinalTotal)
}

func TestPricing_CacheErrorIsAMiss(t *testing.T) {
	fc := newFakeCache()
	fc.getErr = errors.New("connection refused")
	svc, _ := newTestService(t, WithCache(fc))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	b, err := svc.Pricing(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Pricing.FinalTotal, b.FinalTotal)
}

func TestPricing_CacheErrorIsLoggedWithErrorField(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fc := newFakeCache()
	fc.getErr = errors.New("connection refused")
	svc := New(newMemStore(), catalog.Default(), logger.NewZapAdapter(zap.New(core)),
		WithCache(fc), WithIDGenerator(func() string { return "a-1" }))
	ctx := context.Background()
	_, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	_, err = svc.Pricing(ctx, "a-1")
	require.NoError(t, err)

	entries := logs.FilterMessage("pricing cache lookup failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "connection refused", fields["error"])
	assert.Equal(t, "pricing:a-1:v1:"+catalog.Default().Version, fields["key"])
}

func TestComparison(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	cmp, err := svc.Comparison(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.StatusAligned, cmp.Alignment.Status)
	assert.Equal(t, int64(7), cmp.Alignment.PercentageDifference)
	assert.True(t, cmp.BudgetResolved)
}

func TestComparisonText(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	text, err := svc.ComparisonText(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "BUDGET COMPARISON")
	assert.Contains(t, text, "Status: aligned (+7%")
	assert.Contains(t, text, "Calculated Total: $8,000.00")

	_, err = svc.ComparisonText(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProposal_SuggestionAppendedToNotes(t *testing.T) {
	sg := &fakeSuggester{text: "Start with a prototype."}
	svc, _ := newTestService(t, WithSuggester(sg))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	doc, err := svc.Proposal(ctx, rec.ID, ProposalOptions{SpecialNotes: "Hosting is billed separately.", Suggest: true})
	require.NoError(t, err)

	assert.Equal(t, "Client portal Proposal", doc.Title)
	assert.Equal(t, "Hosting is billed separately.\n\nStart with a prototype.", doc.SpecialNotes)
	assert.Equal(t, fixedNow.Truncate(24*time.Hour), doc.Date)
	assert.Equal(t, 1, sg.calls)
}

func TestProposal_SuggesterFailureIsIgnored(t *testing.T) {
	sg := &fakeSuggester{err: errors.New("upstream 502")}
	svc, _ := newTestService(t, WithSuggester(sg))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	doc, err := svc.Proposal(ctx, rec.ID, ProposalOptions{SpecialNotes: "Manual", Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, "Manual", doc.SpecialNotes)
}

func TestProposal_NoSuggestWhenNotAsked(t *testing.T) {
	sg := &fakeSuggester{text: "unused"}
	svc, _ := newTestService(t, WithSuggester(sg))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	doc, err := svc.Proposal(ctx, rec.ID, ProposalOptions{})
	require.NoError(t, err)
	assert.Empty(t, doc.SpecialNotes)
	assert.Zero(t, sg.calls)
}

func TestProposalRenderings(t *testing.T) {
	pdf := &fakePDF{}
	svc, _ := newTestService(t, WithPDFConverter(pdf))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	text, err := svc.ProposalText(ctx, rec.ID, ProposalOptions{})
	require.NoError(t, err)
	assert.Contains(t, text, "Client portal Proposal")
	assert.Contains(t, text, "$8,000.00")

	html, err := svc.ProposalHTML(ctx, rec.ID, ProposalOptions{})
	require.NoError(t, err)
	assert.Contains(t, html, "Client portal Proposal")

	out, err := svc.ProposalPDF(ctx, rec.ID, ProposalOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), out)
	assert.Equal(t, html, pdf.html)
}

func TestProposalPDF_Unavailable(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ProposalPDF(context.Background(), "a-1", ProposalOptions{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmailProposal(t *testing.T) {
	m := &fakeMailer{}
	svc, _ := newTestService(t, WithMailer(m))
	ctx := context.Background()
	rec, err := svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)

	id, err := svc.EmailProposal(ctx, rec.ID, ProposalOptions{})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", id)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "dana@example.test", m.sent[0].To)
	assert.Equal(t, "Client portal Proposal", m.sent[0].Subject)
	assert.Contains(t, m.sent[0].Text, "Payment Schedule")
	assert.Contains(t, m.sent[0].HTML, "<html")
}

func TestEmailProposal_Errors(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t)
	_, err := svc.EmailProposal(ctx, "a-1", ProposalOptions{})
	assert.ErrorIs(t, err, ErrUnavailable)

	m := &fakeMailer{}
	svc, _ = newTestService(t, WithMailer(m))
	ans := portalAnswers()
	ans.ClientEmail = ""
	rec, err := svc.Submit(ctx, ans)
	require.NoError(t, err)
	_, err = svc.EmailProposal(ctx, rec.ID, ProposalOptions{})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, m.sent)

	m.err = errors.New("throttled")
	rec, err = svc.Submit(ctx, portalAnswers())
	require.NoError(t, err)
	_, err = svc.EmailProposal(ctx, rec.ID, ProposalOptions{})
	assert.ErrorContains(t, err, "throttled")
}

func TestAdminText(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ans := portalAnswers()
	ans.TargetAudience = ""
	rec, err := svc.Submit(ctx, ans)
	require.NoError(t, err)

	text, err := svc.AdminText(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "CLIENT PORTAL")
	assert.Contains(t, text, "Target Audience: N/A")
}
