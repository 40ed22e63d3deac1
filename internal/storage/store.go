package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"AssignmentPilot/internal/domain"
)

const (
	assignmentsDir = "Assignments"
	responsesDir   = "Generated_Responses"
	attachmentsDir = "Assignment_Files"

	versionsFile      = "fetched_versions.json"
	coursesFile       = "courses.json"
	notificationsFile = "notifications.json"
	settingsFile      = "settings.json"
	errorLogFile      = "delivery_errors.log"
)

// ErrNotFound is returned when no stored record matches the requested id.
var ErrNotFound = errors.New("record not found")

var unsafeChars = regexp.MustCompile(`[^\w\-. ]`)

// Sanitize maps externally supplied names to a filesystem-safe form.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Store is the file-backed persistence layer. Every table is a whole
// JSON document rewritten through a temp file and rename, so readers
// never observe a torn write. A single active writer is assumed.
type Store struct {
	root   string
	logger *slog.Logger
}

// New prepares the data directory tree rooted at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	for _, sub := range []string{assignmentsDir, responsesDir, attachmentsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return &Store{root: dir, logger: logger}, nil
}

// RecordName derives the deterministic assignment-record filename.
func RecordName(courseName, title string) string {
	return fmt.Sprintf("%s_%s.json", Sanitize(courseName), Sanitize(title))
}

// ResponseName derives the deterministic artifact filename.
func ResponseName(courseName, title string) string {
	return fmt.Sprintf("%s_%s_response.md", Sanitize(courseName), Sanitize(title))
}

// LoadVersions reads the id -> last-processed version token table.
// A missing or corrupt file yields an empty table and a warning; the
// batch then simply reprocesses everything, which is safe.
func (s *Store) LoadVersions() map[string]string {
	versions := map[string]string{}
	if err := s.readJSON(filepath.Join(s.root, versionsFile), &versions); err != nil {
		if !os.IsNotExist(err) {
			s.warn("version table unreadable, resetting", "error", err)
		}
		return map[string]string{}
	}
	return versions
}

// SaveVersions rewrites the whole version table atomically.
func (s *Store) SaveVersions(versions map[string]string) error {
	return s.writeJSON(filepath.Join(s.root, versionsFile), versions)
}

// LoadCourses reads the courseId -> courseName index.
func (s *Store) LoadCourses() map[string]string {
	courses := map[string]string{}
	if err := s.readJSON(filepath.Join(s.root, coursesFile), &courses); err != nil {
		if !os.IsNotExist(err) {
			s.warn("course index unreadable, resetting", "error", err)
		}
		return map[string]string{}
	}
	return courses
}

// SaveCourses rewrites the course index atomically.
func (s *Store) SaveCourses(courses map[string]string) error {
	return s.writeJSON(filepath.Join(s.root, coursesFile), courses)
}

// SaveAssignment writes the assignment record keyed by course name and title.
func (s *Store) SaveAssignment(a domain.Assignment) error {
	name := RecordName(a.CourseName, a.Title)
	return s.writeJSON(filepath.Join(s.root, assignmentsDir, name), a)
}

// LoadAssignments reads every stored record; malformed files are skipped
// with a warning so one corrupt record never hides the rest.
func (s *Store) LoadAssignments() ([]domain.Assignment, error) {
	dir := filepath.Join(s.root, assignmentsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read assignments dir: %w", err)
	}

	var assignments []domain.Assignment
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var a domain.Assignment
		if err := s.readJSON(filepath.Join(dir, entry.Name()), &a); err != nil {
			s.warn("skipping malformed assignment record", "file", entry.Name(), "error", err)
			continue
		}
		if a.Status == "" {
			a.Status = domain.StatusPending
		}
		assignments = append(assignments, a)
	}

	return assignments, nil
}

// FindAssignment returns the stored record with the given id.
func (s *Store) FindAssignment(id string) (domain.Assignment, error) {
	assignments, err := s.LoadAssignments()
	if err != nil {
		return domain.Assignment{}, err
	}
	for _, a := range assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Assignment{}, ErrNotFound
}

// UpdateStatus mutates the stored record's status in place. Values
// outside the accepted set are rejected without touching the record.
func (s *Store) UpdateStatus(id string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	a, err := s.FindAssignment(id)
	if err != nil {
		return err
	}
	a.Status = status
	return s.SaveAssignment(a)
}

// WriteArtifact persists generated output under the responses directory,
// overwriting any previous artifact for the same name.
func (s *Store) WriteArtifact(name, content string) (string, error) {
	path := filepath.Join(s.root, responsesDir, name)
	if err := atomicWrite(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact returns the generated output stored under name.
func (s *Store) ReadArtifact(name string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, responsesDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read artifact: %w", err)
	}
	return string(raw), nil
}

// AttachmentPath maps an external display name to its local file path.
func (s *Store) AttachmentPath(displayName string) string {
	return filepath.Join(s.root, attachmentsDir, Sanitize(displayName))
}

// MaterializeAttachment streams r into the local path for displayName.
// If the file already exists it is reused untouched; stale copies are
// never refreshed. A failed download leaves no partial file behind.
func (s *Store) MaterializeAttachment(displayName string, r io.Reader) (string, error) {
	path := s.AttachmentPath(displayName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("download attachment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close attachment file: %w", err)
	}

	return path, nil
}

// HasAttachment reports whether a local copy of displayName exists.
func (s *Store) HasAttachment(displayName string) bool {
	_, err := os.Stat(s.AttachmentPath(displayName))
	return err == nil
}

// AppendNotification adds one entry to the append-only notification log.
func (s *Store) AppendNotification(entry domain.NotificationEntry) error {
	path := filepath.Join(s.root, notificationsFile)

	var entries []domain.NotificationEntry
	if err := s.readJSON(path, &entries); err != nil && !os.IsNotExist(err) {
		s.warn("notification log unreadable, restarting log", "error", err)
		entries = nil
	}

	entries = append(entries, entry)
	return s.writeJSON(path, entries)
}

// LoadNotifications returns the full notification log, oldest first.
func (s *Store) LoadNotifications() []domain.NotificationEntry {
	var entries []domain.NotificationEntry
	if err := s.readJSON(filepath.Join(s.root, notificationsFile), &entries); err != nil {
		if !os.IsNotExist(err) {
			s.warn("notification log unreadable", "error", err)
		}
		return nil
	}
	return entries
}

// LoadSettings reads the mutable settings record, falling back to the
// provided default recipient when the record is absent or unreadable.
func (s *Store) LoadSettings(defaultRecipient string) domain.Settings {
	var settings domain.Settings
	if err := s.readJSON(filepath.Join(s.root, settingsFile), &settings); err != nil || settings.ReceiverEmail == "" {
		return domain.Settings{ReceiverEmail: defaultRecipient}
	}
	return settings
}

// SaveSettings rewrites the settings record atomically.
func (s *Store) SaveSettings(settings domain.Settings) error {
	return s.writeJSON(filepath.Join(s.root, settingsFile), settings)
}

// AppendErrorLog records a delivery failure on the side error log.
// Failures here are swallowed: the error log must never fail the batch.
func (s *Store) AppendErrorLog(message string) {
	path := filepath.Join(s.root, errorLogFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.warn("cannot open error log", "error", err)
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s - %s\n", time.Now().Format(time.RFC3339), message)
}

func (s *Store) readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWrite stages the content next to path and renames it into place,
// so a crash mid-write cannot leave a truncated file.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".staged-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
