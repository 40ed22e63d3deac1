package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"AssignmentPilot/internal/domain"
	"AssignmentPilot/internal/extract"
	"AssignmentPilot/internal/ports"
	"AssignmentPilot/internal/storage"
)

// creationTime values arrive as ISO-8601-like strings; only the leading
// seconds-resolution part is significant for the cutoff comparison.
const creationTimeLayout = "2006-01-02T15:04:05"

// PipelineDeps wires all driven adapters into the batch pipeline.
type PipelineDeps struct {
	Source           ports.CourseSource
	Attachments      ports.AttachmentFetcher
	Generator        ports.Generator
	Notifier         ports.Notifier
	Store            *storage.Store
	Cutoff           time.Time
	DefaultRecipient string
	Logger           *slog.Logger
}

// Pipeline implements the coursework ingestion-and-processing workflow:
// enumerate coursework, detect changed items against the version table,
// materialize and extract attachments, generate an answer, persist it,
// and notify. Items are processed one at a time; one item's failure
// never aborts the batch.
type Pipeline struct {
	source           ports.CourseSource
	attachments      ports.AttachmentFetcher
	generator        ports.Generator
	notifier         ports.Notifier
	store            *storage.Store
	cutoff           time.Time
	defaultRecipient string
	logger           *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:           deps.Source,
		attachments:      deps.Attachments,
		generator:        deps.Generator,
		notifier:         deps.Notifier,
		store:            deps.Store,
		cutoff:           deps.Cutoff,
		defaultRecipient: deps.DefaultRecipient,
		logger:           deps.Logger,
	}
}

// Run executes one batch. The version table is the single dedup
// authority: an item is processed iff its id is absent from the table or
// its stored token differs from the current updateTime. The table is
// flushed after every successful item, so a crash mid-batch never
// reprocesses completed work.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.source == nil {
		return nil
	}

	courses, err := p.source.ListCourses(ctx)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}

	versions := p.store.LoadVersions()
	courseIndex := p.store.LoadCourses()

	for _, course := range courses {
		if _, ok := courseIndex[course.ID]; !ok {
			courseIndex[course.ID] = course.Name
		}

		items, err := p.source.ListCourseWork(ctx, course.ID)
		if err != nil {
			p.warn("cannot list coursework", "course", course.Name, "error", err)
			continue
		}
		p.debug("course scanned", "course", course.Name, "items", len(items))

		for _, item := range items {
			if !p.needsProcessing(item, versions) {
				continue
			}

			if err := p.processItem(ctx, course, item); err != nil {
				p.warn("item left for next run", "id", item.ID, "title", item.Title, "error", err)
				continue
			}

			versions[item.ID] = item.UpdateTime
			if err := p.store.SaveVersions(versions); err != nil {
				p.warn("cannot save version table", "error", err)
			}
		}
	}

	if err := p.store.SaveCourses(courseIndex); err != nil {
		p.warn("cannot save course index", "error", err)
	}

	return nil
}

// needsProcessing applies the cutoff gate and the version-token check.
// Items created before the cutoff are excluded unconditionally, and a
// malformed creation timestamp excludes the item rather than failing.
func (p *Pipeline) needsProcessing(item domain.Assignment, versions map[string]string) bool {
	if raw := item.CreationTime; raw != "" {
		if len(raw) > len(creationTimeLayout) {
			raw = raw[:len(creationTimeLayout)]
		}
		created, err := time.Parse(creationTimeLayout, raw)
		if err != nil {
			p.warn("invalid creationTime, skipping item", "id", item.ID, "value", item.CreationTime)
			return false
		}
		if created.Before(p.cutoff) {
			return false
		}
	}

	previous, ok := versions[item.ID]
	return !ok || previous != item.UpdateTime
}

// processItem runs one assignment through extraction, generation, and
// persistence. An error return means no state was advanced and the item
// is a retry candidate on the next scheduled run.
func (p *Pipeline) processItem(ctx context.Context, course domain.Course, item domain.Assignment) error {
	var results []extract.Result
	for _, material := range item.Materials {
		if material.AttachmentID == "" || material.DisplayName == "" {
			continue
		}

		path, err := p.resolveAttachment(ctx, material)
		if err != nil {
			results = append(results, extract.Result{
				Name:     material.DisplayName,
				Text:     fmt.Sprintf("(Failed to download attachment %q: %v)", material.DisplayName, err),
				Degraded: true,
			})
			continue
		}
		item.LocalAttachmentPath = path

		result := extract.File(path)
		result.Name = material.DisplayName
		results = append(results, result)
	}

	prompt := buildPrompt(item.Title, statement(item.Description, results))

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	artifactName := storage.ResponseName(course.Name, item.Title)
	artifactPath, err := p.store.WriteArtifact(artifactName, answer)
	if err != nil {
		return err
	}

	item.CourseID = course.ID
	item.CourseName = course.Name
	item.ResponseFile = filepath.Join("Generated_Responses", artifactName)
	if item.Status == "" {
		item.Status = domain.StatusPending
	}
	if err := p.store.SaveAssignment(item); err != nil {
		return fmt.Errorf("save assignment record: %w", err)
	}

	p.notify(ctx, course, item, artifactPath)
	return nil
}

// resolveAttachment guarantees a local copy of the material, downloading
// it on first sight. Existing files are trusted as-is.
func (p *Pipeline) resolveAttachment(ctx context.Context, material domain.Material) (string, error) {
	if p.store.HasAttachment(material.DisplayName) {
		return p.store.AttachmentPath(material.DisplayName), nil
	}
	if p.attachments == nil {
		return "", fmt.Errorf("no attachment fetcher configured")
	}

	body, err := p.attachments.Fetch(ctx, material.AttachmentID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path, err := p.store.MaterializeAttachment(material.DisplayName, body)
	if err != nil {
		return "", err
	}
	p.debug("attachment downloaded", "file", material.DisplayName)
	return path, nil
}

// notify attempts delivery and appends the audit log entry regardless of
// the delivery outcome. Nothing here can fail the batch or roll back the
// already-persisted artifact.
func (p *Pipeline) notify(ctx context.Context, course domain.Course, item domain.Assignment, artifactPath string) {
	settings := p.store.LoadSettings(p.defaultRecipient)

	subject := "New assignment: " + item.Title
	body := fmt.Sprintf(
		"Course: %s (%s)\nTitle: %s\nDue date: %s\nResponse file: %s\n\nYour AI assistant has generated a solution. Please review it.",
		course.Name, course.ID, item.Title, item.DueDate.Label(), artifactPath,
	)

	if p.notifier == nil {
		p.store.AppendErrorLog(fmt.Sprintf("no notifier configured, skipped delivery for %q", item.Title))
	} else if err := p.notifier.Send(ctx, subject, body, settings.ReceiverEmail); err != nil {
		p.store.AppendErrorLog(fmt.Sprintf("failed to send notification for %q: %v", item.Title, err))
		p.warn("notification delivery failed", "id", item.ID, "error", err)
	}

	entry := domain.NotificationEntry{
		ID:         uuid.NewString(),
		Assignment: item.Title,
		Course:     course.Name,
		Channel:    "email",
		SentTime:   time.Now().UTC(),
	}
	if err := p.store.AppendNotification(entry); err != nil {
		p.warn("cannot append notification log", "id", item.ID, "error", err)
	}
}

// statement augments the assignment description with every attachment's
// extracted text; degraded results contribute their diagnostic markers so
// generation still proceeds on partial input.
func statement(description string, results []extract.Result) string {
	out := strings.TrimSpace(description)
	if len(results) == 0 {
		return out
	}

	sections := make([]string, 0, len(results))
	for _, r := range results {
		sections = append(sections, fmt.Sprintf("**%s**:\n%s", r.Name, strings.TrimSpace(r.Text)))
	}

	return out + "\n\n---\nAttached file content:\n\n" + strings.Join(sections, "\n\n---\n")
}

func buildPrompt(title, statement string) string {
	return fmt.Sprintf(`You are an intelligent and helpful academic assistant. Your task is to read the following assignment statement and do two things:

1. Answer the assignment clearly, to the point, and academically.
2. Break it down into steps that a student could follow to complete it themselves.

Assignment Title: %s

Statement:
%s

Please format your response in markdown using clear sections.
`, title, statement)
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
