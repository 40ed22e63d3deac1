package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"AssignmentPilot/internal/config"
	"AssignmentPilot/internal/domain"
	"AssignmentPilot/internal/ports"
)

// Client talks to the external classroom service: course enumeration,
// per-course coursework listings, and attachment byte streams.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ ports.CourseSource = (*Client)(nil)
var _ ports.AttachmentFetcher = (*Client)(nil)

// NewClient builds a client from configuration; a nil http.Client gets a
// sensible default timeout.
func NewClient(cfg config.ClassroomConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
	}
}

// ListCourses returns all courses visible to the configured credentials.
func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var payload struct {
		Courses []domain.Course `json:"courses"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/courses", &payload); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return payload.Courses, nil
}

// ListCourseWork returns the coursework items of one course.
func (c *Client) ListCourseWork(ctx context.Context, courseID string) ([]domain.Assignment, error) {
	var payload struct {
		CourseWork []domain.Assignment `json:"courseWork"`
	}
	url := fmt.Sprintf("%s/courses/%s/courseWork", c.baseURL, courseID)
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("list coursework for %s: %w", courseID, err)
	}

	for i := range payload.CourseWork {
		payload.CourseWork[i].CourseID = courseID
	}
	return payload.CourseWork, nil
}

// Fetch opens a byte stream for the given attachment. The caller owns
// the returned body and must close it after draining.
func (c *Client) Fetch(ctx context.Context, attachmentID string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/attachments/%s", c.baseURL, attachmentID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment %s: %w", attachmentID, err)
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("classroom returned %s", resp.Status)
	}

	return resp, nil
}
