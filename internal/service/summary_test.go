package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/extract"
	"github.com/sakif/text-summarizer/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

type fakeSummaryRepo struct {
	items  map[string]*model.Summary
	nextID int
	clock  time.Time

	createErr error
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{
		items:  make(map[string]*model.Summary),
		nextID: 1,
		clock:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeSummaryRepo) Create(ctx context.Context, s *model.Summary) error {
	if f.createErr != nil {
		return f.createErr
	}
	s.ID = fmt.Sprintf("sum-%d", f.nextID)
	s.ShareID = fmt.Sprintf("share-%d", f.nextID)
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	s.CreatedAt, s.UpdatedAt = f.clock, f.clock

	copied := *s
	f.items[s.ID] = &copied
	return nil
}

func (f *fakeSummaryRepo) ListByUser(ctx context.Context, userID string) ([]model.Summary, error) {
	var out []model.Summary
	for _, s := range f.items {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSummaryRepo) owned(userID, id string) (*model.Summary, error) {
	s, ok := f.items[id]
	if !ok || s.UserID != userID {
		return nil, apperror.NotFound("Summary")
	}
	return s, nil
}

func (f *fakeSummaryRepo) Delete(ctx context.Context, userID, id string) (*model.Summary, error) {
	s, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	delete(f.items, id)
	return s, nil
}

func (f *fakeSummaryRepo) ToggleFavorite(ctx context.Context, userID, id string) (bool, error) {
	s, err := f.owned(userID, id)
	if err != nil {
		return false, err
	}
	s.Favorite = !s.Favorite
	return s.Favorite, nil
}

func (f *fakeSummaryRepo) GetByShareID(ctx context.Context, shareID string) (*model.Summary, error) {
	for _, s := range f.items {
		if s.ShareID == shareID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("Summary")
}

type fakeExtractor struct {
	text string
	err  error
	got  []extract.File
}

func (f *fakeExtractor) Extract(ctx context.Context, file extract.File) (string, error) {
	f.got = append(f.got, file)
	return f.text, f.err
}

type summarizeCall struct {
	text     string
	style    model.Style
	language string
}

type fakeSummarizer struct {
	reply string
	err   error
	calls []summarizeCall
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, style model.Style, language string) (string, error) {
	f.calls = append(f.calls, summarizeCall{text, style, language})
	return f.reply, f.err
}

// memCache is a map-backed cache.Cache that can be told to fail.
type memCache struct {
	data    map[string][]byte
	gets    int
	failAll bool

	// beforeSet runs once at the start of the next Set.
	beforeSet func()
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.failAll {
		return nil, false, errors.New("connection refused")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	if c.failAll {
		return errors.New("connection refused")
	}
	c.data[key] = val
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	if c.failAll {
		return errors.New("connection refused")
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

type summaryFixture struct {
	svc        *SummaryService
	repo       *fakeSummaryRepo
	extractor  *fakeExtractor
	summarizer *fakeSummarizer
	cache      *memCache
}

func newSummaryFixture() *summaryFixture {
	f := &summaryFixture{
		repo:       newFakeSummaryRepo(),
		extractor:  &fakeExtractor{},
		summarizer: &fakeSummarizer{reply: "A short summary."},
		cache:      newMemCache(),
	}
	f.svc = NewSummaryService(f.repo, f.extractor, f.summarizer, f.cache, time.Minute, quietLogger())
	return f
}

// =========================================================================
// Summarize TESTS
// =========================================================================

func TestSummarize_TextWithDefaults(t *testing.T) {
	f := newSummaryFixture()

	s, err := f.svc.Summarize(context.Background(), "user-1", SummarizeInput{Text: "Hello world. This is a test."})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if s.Summary != "A short summary." {
		t.Errorf("Summary = %q", s.Summary)
	}
	if s.Style != model.StyleShort {
		t.Errorf("Style = %q, want Short", s.Style)
	}
	if s.Language != "English" {
		t.Errorf("Language = %q, want English", s.Language)
	}
	if s.ShareID == "" || s.ID == "" {
		t.Errorf("ID/ShareID not assigned: %+v", s)
	}
	if s.UserID != "user-1" || s.Favorite {
		t.Errorf("unexpected owner/favorite: %+v", s)
	}
	if len(f.extractor.got) != 0 {
		t.Error("extractor called without a file")
	}
}

func TestSummarize_StyleAndLanguage(t *testing.T) {
	f := newSummaryFixture()

	s, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "x y z", Style: "bullet", Language: " French "})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	want := summarizeCall{"x y z", model.StyleBullet, "French"}
	if len(f.summarizer.calls) != 1 || f.summarizer.calls[0] != want {
		t.Errorf("summarizer calls = %+v, want [%+v]", f.summarizer.calls, want)
	}
	if s.Style != model.StyleBullet || s.Language != "French" {
		t.Errorf("stored style/language = %q/%q", s.Style, s.Language)
	}
}

func TestSummarize_LanguageLimitCountsCharacters(t *testing.T) {
	f := newSummaryFixture()
	lang := strings.Repeat("語", 40) // 120 bytes, 40 characters

	s, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "x y z", Language: lang})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Language != lang {
		t.Errorf("Language = %q, want %q", s.Language, lang)
	}
}

func TestSummarize_InvalidInput(t *testing.T) {
	cases := map[string]SummarizeInput{
		"blank text, no file":          {Text: "   \n "},
		"unknown style":                {Text: "hello", Style: "Haiku"},
		"language too long":            {Text: "hello", Language: strings.Repeat("x", 41)},
		"language too long, multibyte": {Text: "hello", Language: strings.Repeat("語", 41)},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSummaryFixture()

			_, err := f.svc.Summarize(context.Background(), "u", in)

			assertKind(t, err, apperror.ErrValidation)
			if len(f.summarizer.calls) != 0 {
				t.Error("provider called for invalid input")
			}
			if len(f.repo.items) != 0 {
				t.Error("record created for invalid input")
			}
		})
	}
}

func TestSummarize_DocumentWithInstruction(t *testing.T) {
	f := newSummaryFixture()
	f.extractor.text = "Quarterly revenue grew 12%."
	file := &extract.File{Name: "q3.pdf", ContentType: extract.MediaTypePDF, Data: []byte("%PDF-")}

	s, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "focus on revenue", File: file})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	want := "Instruction: focus on revenue\n\nDocument:\nQuarterly revenue grew 12%."
	if f.summarizer.calls[0].text != want {
		t.Errorf("payload = %q, want %q", f.summarizer.calls[0].text, want)
	}
	if s.Text != want {
		t.Errorf("stored text = %q", s.Text)
	}
	if len(f.extractor.got) != 1 || f.extractor.got[0].Name != "q3.pdf" {
		t.Errorf("extractor got %+v", f.extractor.got)
	}
}

func TestSummarize_ExtractionErrorPassesThrough(t *testing.T) {
	f := newSummaryFixture()
	f.extractor.err = apperror.UnsupportedFormat("image/png")

	_, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{File: &extract.File{Name: "a.png"}})

	assertKind(t, err, apperror.ErrUnsupported)
	if len(f.summarizer.calls) != 0 {
		t.Error("provider called after extraction failed")
	}
}

func TestSummarize_ProviderFailureStoresNothing(t *testing.T) {
	f := newSummaryFixture()
	f.summarizer.err = apperror.Upstream("Failed to generate summary", errors.New("quota"))

	_, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "hello"})

	assertKind(t, err, apperror.ErrUpstream)
	if len(f.repo.items) != 0 {
		t.Error("record created although the provider failed")
	}
}

func TestSummarize_RepositoryError(t *testing.T) {
	f := newSummaryFixture()
	f.repo.createErr = errors.New("database is locked")

	_, err := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "hello"})

	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Fatalf("error = %v, want wrapped repository error", err)
	}
}

// =========================================================================
// HISTORY TESTS
// =========================================================================

func TestList_NewestFirstAndNeverNil(t *testing.T) {
	f := newSummaryFixture()

	empty, err := f.svc.List(context.Background(), "u")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil {
		t.Error("List() returned nil, want empty slice")
	}

	first, _ := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "first"})
	second, _ := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "second"})
	_, _ = f.svc.Summarize(context.Background(), "someone-else", SummarizeInput{Text: "other"})

	list, err := f.svc.List(context.Background(), "u")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, second.ID, first.ID)
	}
}

func TestToggleFavorite_TwiceRestores(t *testing.T) {
	f := newSummaryFixture()
	s, _ := f.svc.Summarize(context.Background(), "u", SummarizeInput{Text: "hello"})

	on, err := f.svc.ToggleFavorite(context.Background(), "u", s.ID)
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v; want true, nil", on, err)
	}
	off, err := f.svc.ToggleFavorite(context.Background(), "u", s.ID)
	if err != nil || off {
		t.Fatalf("second toggle = %v, %v; want false, nil", off, err)
	}
}

func TestOwnership_NonOwnerLooksLikeMissing(t *testing.T) {
	f := newSummaryFixture()
	s, _ := f.svc.Summarize(context.Background(), "owner", SummarizeInput{Text: "hello"})

	_, errToggleOther := f.svc.ToggleFavorite(context.Background(), "intruder", s.ID)
	_, errToggleMissing := f.svc.ToggleFavorite(context.Background(), "owner", "no-such-id")
	errDeleteOther := f.svc.Delete(context.Background(), "intruder", s.ID)
	errDeleteMissing := f.svc.Delete(context.Background(), "owner", "no-such-id")

	for name, err := range map[string]error{
		"toggle other": errToggleOther, "toggle missing": errToggleMissing,
		"delete other": errDeleteOther, "delete missing": errDeleteMissing,
	} {
		appErr := assertKind(t, err, apperror.ErrNotFound)
		if appErr.Message != "Summary not found" {
			t.Errorf("%s: Message = %q", name, appErr.Message)
		}
	}
	if _, ok := f.repo.items[s.ID]; !ok {
		t.Error("non-owner delete removed the record")
	}
}

// =========================================================================
// SHARE LINK TESTS
// =========================================================================

func TestGetShared_CacheAside(t *testing.T) {
	f := newSummaryFixture()
	s, _ := f.svc.Summarize(context.Background(), "owner", SummarizeInput{Text: "hello"})

	shared, err := f.svc.GetShared(context.Background(), s.ShareID)
	if err != nil {
		t.Fatalf("GetShared() error = %v", err)
	}
	if shared.Summary != "A short summary." || shared.ShareID != s.ShareID {
		t.Errorf("shared = %+v", shared)
	}

	raw, ok := f.cache.data["share:"+s.ShareID]
	if !ok {
		t.Fatal("share not cached after first read")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("cached value is not JSON: %v", err)
	}
	if _, leaked := fields["userId"]; leaked {
		t.Error("cached projection contains the owner")
	}

	// Second read is served from the cache even if the row disappears.
	delete(f.repo.items, s.ID)
	again, err := f.svc.GetShared(context.Background(), s.ShareID)
	if err != nil || again.ID != s.ID {
		t.Fatalf("cached GetShared() = %+v, %v", again, err)
	}
}

func TestGetShared_DeleteEvicts(t *testing.T) {
	f := newSummaryFixture()
	s, _ := f.svc.Summarize(context.Background(), "owner", SummarizeInput{Text: "hello"})
	if _, err := f.svc.GetShared(context.Background(), s.ShareID); err != nil {
		t.Fatalf("GetShared() error = %v", err)
	}

	if err := f.svc.Delete(context.Background(), "owner", s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := f.svc.GetShared(context.Background(), s.ShareID)
	assertKind(t, err, apperror.ErrNotFound)
}

func TestGetShared_DeleteDuringFillIsNotCached(t *testing.T) {
	f := newSummaryFixture()
	s, _ := f.svc.Summarize(context.Background(), "owner", SummarizeInput{Text: "hello"})

	// The owner deletes after GetShared has read the row but before it
	// fills the cache.
	f.cache.beforeSet = func() {
		if err := f.svc.Delete(context.Background(), "owner", s.ID); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	}

	_, err := f.svc.GetShared(context.Background(), s.ShareID)
	assertKind(t, err, apperror.ErrNotFound)

	if _, ok := f.cache.data["share:"+s.ShareID]; ok {
		t.Fatal("deleted share left in the cache")
	}
	_, err = f.svc.GetShared(context.Background(), s.ShareID)
	assertKind(t, err, apperror.ErrNotFound)
}

func TestGetShared_CacheDownFallsBackToDB(t *testing.T) {
	f := newSummaryFixture()
	f.cache.failAll = true
	s, _ := f.svc.Summarize(context.Background(), "owner", SummarizeInput{Text: "hello"})

	shared, err := f.svc.GetShared(context.Background(), s.ShareID)
	if err != nil {
		t.Fatalf("GetShared() error = %v", err)
	}
	if shared.ID != s.ID {
		t.Errorf("ID = %q, want %q", shared.ID, s.ID)
	}
	if err := f.svc.Delete(context.Background(), "owner", s.ID); err != nil {
		t.Errorf("Delete() must not fail on cache errors: %v", err)
	}
}

func TestGetShared_Unknown(t *testing.T) {
	f := newSummaryFixture()

	for _, id := range []string{"nope", ""} {
		_, err := f.svc.GetShared(context.Background(), id)
		assertKind(t, err, apperror.ErrNotFound)
	}
}

// =========================================================================
// ComposePayload TESTS
// =========================================================================

func TestComposePayload(t *testing.T) {
	nineWords := "one two three four five six seven eight nine"
	tenWords := nineWords + " ten"

	cases := []struct {
		name, text, doc, want string
	}{
		{"text only", "  plain text  ", "", "plain text"},
		{"document only", "", "doc body", "doc body"},
		{"short instruction", "summarize briefly", "doc body", "Instruction: summarize briefly\n\nDocument:\ndoc body"},
		{"nine words is still an instruction", nineWords, "doc", "Instruction: " + nineWords + "\n\nDocument:\ndoc"},
		{"ten words is content", tenWords, "doc", tenWords + "\n\ndoc"},
		{"nothing", " ", "\n", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComposePayload(tc.text, tc.doc); got != tc.want {
				t.Errorf("ComposePayload(%q, %q) = %q, want %q", tc.text, tc.doc, got, tc.want)
			}
		})
	}
}
