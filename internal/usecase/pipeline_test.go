package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"AssignmentPilot/internal/domain"
	"AssignmentPilot/internal/storage"
)

type fakeSource struct {
	courses []domain.Course
	work    map[string][]domain.Assignment
}

func (f *fakeSource) ListCourses(ctx context.Context) ([]domain.Course, error) {
	return f.courses, nil
}

func (f *fakeSource) ListCourseWork(ctx context.Context, courseID string) ([]domain.Assignment, error) {
	return f.work[courseID], nil
}

type fakeFetcher struct {
	files map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, attachmentID string) (io.ReadCloser, error) {
	f.calls++
	raw, ok := f.files[attachmentID]
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", attachmentID)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeGenerator struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeNotifier struct {
	err        error
	calls      int
	recipients []string
}

func (f *fakeNotifier) Send(ctx context.Context, subject, body, recipient string) error {
	f.calls++
	f.recipients = append(f.recipients, recipient)
	return f.err
}

type testEnv struct {
	pipeline  *Pipeline
	store     *storage.Store
	source    *fakeSource
	fetcher   *fakeFetcher
	generator *fakeGenerator
	notifier  *fakeNotifier
}

func newTestEnv(t *testing.T, source *fakeSource) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	fetcher := &fakeFetcher{files: map[string][]byte{}}
	generator := &fakeGenerator{response: "Generated answer."}
	notifier := &fakeNotifier{}
	cutoff, _ := time.Parse("2006-01-02", "2025-07-13")

	pipeline := NewPipeline(PipelineDeps{
		Source:           source,
		Attachments:      fetcher,
		Generator:        generator,
		Notifier:         notifier,
		Store:            store,
		Cutoff:           cutoff,
		DefaultRecipient: "fallback@email.com",
		Logger:           logger,
	})

	return &testEnv{
		pipeline:  pipeline,
		store:     store,
		source:    source,
		fetcher:   fetcher,
		generator: generator,
		notifier:  notifier,
	}
}

func singleItemSource(item domain.Assignment) *fakeSource {
	return &fakeSource{
		courses: []domain.Course{{ID: "c1", Name: "Literature"}},
		work:    map[string][]domain.Assignment{"c1": {item}},
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		Description:  "Write 500 words",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}))

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.generator.calls != 1 {
		t.Fatalf("expected 1 generation call, got %d", env.generator.calls)
	}
	prompt := env.generator.prompts[0]
	if !strings.Contains(prompt, "Essay") || !strings.Contains(prompt, "Write 500 words") {
		t.Fatalf("prompt missing title or description:\n%s", prompt)
	}

	content, err := env.store.ReadArtifact(storage.ResponseName("Literature", "Essay"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if content != "Generated answer." {
		t.Fatalf("unexpected artifact content: %q", content)
	}

	versions := env.store.LoadVersions()
	if versions["w1"] != "v1" {
		t.Fatalf("version table not advanced: %v", versions)
	}

	entries := env.store.LoadNotifications()
	if len(entries) != 1 {
		t.Fatalf("expected 1 notification entry, got %d", len(entries))
	}
	if entries[0].Assignment != "Essay" || entries[0].Course != "Literature" {
		t.Fatalf("unexpected notification entry: %+v", entries[0])
	}
	if env.notifier.recipients[0] != "fallback@email.com" {
		t.Fatalf("expected default recipient, got %q", env.notifier.recipients[0])
	}

	record, err := env.store.FindAssignment("w1")
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	if record.CourseName != "Literature" || record.Status != domain.StatusPending {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}))

	ctx := context.Background()
	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if env.generator.calls != 1 {
		t.Fatalf("second run triggered generation, total calls %d", env.generator.calls)
	}
	if entries := env.store.LoadNotifications(); len(entries) != 1 {
		t.Fatalf("second run appended notifications, got %d", len(entries))
	}
}

func TestVersionChangeTriggersReprocessing(t *testing.T) {
	t.Parallel()

	item := domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}
	env := newTestEnv(t, singleItemSource(item))

	ctx := context.Background()
	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	item.UpdateTime = "v2"
	env.source.work["c1"] = []domain.Assignment{item}
	env.generator.response = "Revised answer."

	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if env.generator.calls != 2 {
		t.Fatalf("expected 2 generation calls, got %d", env.generator.calls)
	}
	if versions := env.store.LoadVersions(); versions["w1"] != "v2" {
		t.Fatalf("version not advanced: %v", versions)
	}

	content, err := env.store.ReadArtifact(storage.ResponseName("Literature", "Essay"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if content != "Revised answer." {
		t.Fatalf("artifact not overwritten: %q", content)
	}
}

func TestCutoffExcludesOldItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "old1",
		Title:        "Ancient homework",
		CreationTime: "2025-01-01T10:00:00Z",
		UpdateTime:   "v1",
	}))

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.generator.calls != 0 {
		t.Fatalf("item before cutoff was processed, calls %d", env.generator.calls)
	}
	if versions := env.store.LoadVersions(); len(versions) != 0 {
		t.Fatalf("version table should stay empty: %v", versions)
	}
}

func TestMalformedCreationTimeSkipsItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "yesterday-ish",
		UpdateTime:   "v1",
	}))

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.generator.calls != 0 {
		t.Fatalf("item with malformed timestamp was processed, calls %d", env.generator.calls)
	}
}

func TestAttachmentFaultContainment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		Description:  "Answer the attached questions",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
		Materials: []domain.Material{
			{AttachmentID: "att-good", DisplayName: "notes.txt"},
			{AttachmentID: "att-bad", DisplayName: "broken.pdf"},
		},
	}))
	env.fetcher.files["att-good"] = []byte("Read chapter 3 carefully.")
	env.fetcher.files["att-bad"] = []byte("this is not a pdf")

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.generator.calls != 1 {
		t.Fatalf("expected generation despite corrupt attachment, calls %d", env.generator.calls)
	}
	prompt := env.generator.prompts[0]
	if !strings.Contains(prompt, "Read chapter 3 carefully.") {
		t.Fatalf("prompt missing intact attachment text:\n%s", prompt)
	}
	if !strings.Contains(prompt, "(Error reading PDF:") {
		t.Fatalf("prompt missing corrupt attachment marker:\n%s", prompt)
	}

	if _, err := env.store.ReadArtifact(storage.ResponseName("Literature", "Essay")); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestDownloadFailureBecomesDegradedText(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
		Materials:    []domain.Material{{AttachmentID: "gone", DisplayName: "lost.txt"}},
	}))

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.generator.calls != 1 {
		t.Fatalf("expected generation despite download failure, calls %d", env.generator.calls)
	}
	if !strings.Contains(env.generator.prompts[0], "(Failed to download attachment") {
		t.Fatalf("prompt missing download failure marker:\n%s", env.generator.prompts[0])
	}
}

func TestExistingAttachmentIsNotRedownloaded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
		Materials:    []domain.Material{{AttachmentID: "att1", DisplayName: "notes.txt"}},
	}))

	path := env.store.AttachmentPath("notes.txt")
	if err := os.WriteFile(path, []byte("local copy wins"), 0o644); err != nil {
		t.Fatalf("seed attachment: %v", err)
	}

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.fetcher.calls != 0 {
		t.Fatalf("existing local file was re-fetched %d times", env.fetcher.calls)
	}
	if !strings.Contains(env.generator.prompts[0], "local copy wins") {
		t.Fatalf("prompt missing local file text:\n%s", env.generator.prompts[0])
	}
}

func TestGenerationFailureLeavesItemForNextRun(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}))
	env.generator.err = errors.New("rate limited")

	ctx := context.Background()
	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("run with failing generator: %v", err)
	}

	if versions := env.store.LoadVersions(); len(versions) != 0 {
		t.Fatalf("version advanced despite generation failure: %v", versions)
	}
	if entries := env.store.LoadNotifications(); len(entries) != 0 {
		t.Fatalf("notification logged despite generation failure: %+v", entries)
	}

	// Next scheduled run picks the item up again.
	env.generator.err = nil
	if err := env.pipeline.Run(ctx); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if versions := env.store.LoadVersions(); versions["w1"] != "v1" {
		t.Fatalf("retry did not advance version: %v", versions)
	}
}

func TestNotificationFailureDoesNotRollBackState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}))
	env.notifier.err = errors.New("smtp unreachable")

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if versions := env.store.LoadVersions(); versions["w1"] != "v1" {
		t.Fatalf("version not advanced: %v", versions)
	}
	if entries := env.store.LoadNotifications(); len(entries) != 1 {
		t.Fatalf("expected audit entry despite delivery failure, got %d", len(entries))
	}
	if _, err := env.store.ReadArtifact(storage.ResponseName("Literature", "Essay")); err != nil {
		t.Fatalf("artifact missing after delivery failure: %v", err)
	}
}

func TestRecipientResolvedFromSettings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, singleItemSource(domain.Assignment{
		ID:           "w1",
		Title:        "Essay",
		CreationTime: "2025-08-01T10:00:00Z",
		UpdateTime:   "v1",
	}))
	if err := env.store.SaveSettings(domain.Settings{ReceiverEmail: "student@example.org"}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.notifier.recipients[0] != "student@example.org" {
		t.Fatalf("expected configured recipient, got %q", env.notifier.recipients[0])
	}
}

func TestCourseIndexGrows(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		courses: []domain.Course{{ID: "c1", Name: "Literature"}, {ID: "c2", Name: "Math"}},
		work:    map[string][]domain.Assignment{},
	}
	env := newTestEnv(t, source)

	if err := env.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	courses := env.store.LoadCourses()
	if courses["c1"] != "Literature" || courses["c2"] != "Math" {
		t.Fatalf("course index incomplete: %v", courses)
	}
}
