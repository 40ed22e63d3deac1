package ports

import (
	"context"
	"io"
	"time"

	"AssignmentPilot/internal/domain"
)

// CourseSource enumerates courses and their coursework from the upstream service.
type CourseSource interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
	ListCourseWork(ctx context.Context, courseID string) ([]domain.Assignment, error)
}

// AttachmentFetcher streams attachment bytes from the external file service.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, attachmentID string) (io.ReadCloser, error)
}

// Generator submits a prompt to the external generation service and
// returns the completion text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers a notification through an outbound channel (email, etc.).
type Notifier interface {
	Send(ctx context.Context, subject, body, recipient string) error
}

// Scheduler controls when batches execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
