package domain

import "fmt"

// Material references an external attachment on a coursework item.
type Material struct {
	AttachmentID string `json:"attachmentId"`
	DisplayName  string `json:"displayName"`
}

// DueDate is the structured deadline reported by the classroom service.
type DueDate struct {
	Day   int `json:"day,omitempty"`
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// Label renders the deadline as day/month/year, or N/A when absent.
func (d *DueDate) Label() string {
	if d == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d/%d/%d", d.Day, d.Month, d.Year)
}

// Status tracks whether the student marked the assignment as done.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the accepted status values.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Assignment is a core entity describing one coursework item. The JSON
// shape doubles as the on-disk record format consumed by the HTTP API,
// so stored files need no transformation before serving.
type Assignment struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	CreationTime        string     `json:"creationTime,omitempty"`
	UpdateTime          string     `json:"updateTime,omitempty"`
	DueDate             *DueDate   `json:"dueDate,omitempty"`
	CourseID            string     `json:"courseId"`
	CourseName          string     `json:"courseName,omitempty"`
	Materials           []Material `json:"materials,omitempty"`
	Status              Status     `json:"status,omitempty"`
	ResponseFile        string     `json:"aiResponseFile,omitempty"`
	LocalAttachmentPath string     `json:"localAttachmentPath,omitempty"`
}

// Course pairs a course identifier with its display name.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
