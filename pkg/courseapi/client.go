package courseapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

const (
	EndpointClassroom = "classroom"
	EndpointLesson    = "lesson"
	EndpointVideo     = "video"

	DefaultBaseURL = "https://khan-sir-free-class.onrender.com/api"

	untitledVideo = "Untitled Video"
)

// Outcome labels passed to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Observer receives per-request timings, typically backed by Prometheus.
type Observer interface {
	ObserveRemoteFetch(endpoint, outcome string, duration time.Duration)
}

// Options configures a Client. Zero values fall back to sensible defaults.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	UserAgent          string
	RequestsPerSecond  int
	ResolveConcurrency int
	MaxRetries         int
	Headers            map[string]string
	HTTPClient         *http.Client
	Logger             *zap.Logger
	Observer           Observer
}

// Client talks to the classroom, lesson and video endpoints of the course API.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	userAgent          string
	headers            map[string]string
	limiter            *rate.Limiter
	resolveConcurrency int
	maxRetries         int
	logger             *zap.Logger
	observer           Observer
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ResolveConcurrency <= 0 {
		opts.ResolveConcurrency = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSecond)), 1)
	}
	return &Client{
		httpClient:         httpClient,
		baseURL:            strings.TrimRight(opts.BaseURL, "/"),
		userAgent:          opts.UserAgent,
		headers:            opts.Headers,
		limiter:            limiter,
		resolveConcurrency: opts.ResolveConcurrency,
		maxRetries:         opts.MaxRetries,
		logger:             opts.Logger,
		observer:           opts.Observer,
	}
}

// flexString accepts JSON strings and numbers, since ids arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type classroomResponse struct {
	Classroom []struct {
		ID     flexString `json:"id"`
		Name   string     `json:"name"`
		Notes  int        `json:"notes"`
		Videos int        `json:"videos"`
	} `json:"classroom"`
}

type lessonResponse struct {
	Name   string        `json:"name"`
	Videos []lessonVideo `json:"videos"`
}

type lessonVideo struct {
	ID          flexString      `json:"id"`
	Name        *string         `json:"name"`
	PublishedAt string          `json:"published_at"`
	PDFs        json.RawMessage `json:"pdfs"`
}

type pdfEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type videoResponse struct {
	HDVideoURL string `json:"hd_video_url"`
	VideoURL   string `json:"video_url"`
}

// FetchSubjects lists the classroom entries of a batch. Failures are logged and
// reported as an empty list: "no subjects" is a normal, reportable state.
func (c *Client) FetchSubjects(ctx context.Context, batchID string) []models.Subject {
	var payload classroomResponse
	if err := c.getJSON(ctx, EndpointClassroom, batchID, &payload); err != nil {
		c.logger.Warn("classroom fetch failed, treating as empty", zap.String("batch_id", batchID), zap.Error(err))
		return []models.Subject{}
	}
	subjects := make([]models.Subject, 0, len(payload.Classroom))
	for _, entry := range payload.Classroom {
		subjects = append(subjects, models.Subject{
			ID:          string(entry.ID),
			Name:        entry.Name,
			NotesCount:  max(entry.Notes, 0),
			VideosCount: max(entry.Videos, 0),
		})
	}
	return subjects
}

// FetchLessonVideos loads a lesson, orders its videos by publication time and
// resolves every playable URL. Videos without a URL are dropped.
func (c *Client) FetchLessonVideos(ctx context.Context, classID string) (string, []models.VideoEntry, error) {
	var payload lessonResponse
	if err := c.getJSON(ctx, EndpointLesson, classID, &payload); err != nil {
		return "", nil, err
	}

	// Missing timestamps compare as "" and therefore sort first.
	sort.SliceStable(payload.Videos, func(i, j int) bool {
		return payload.Videos[i].PublishedAt < payload.Videos[j].PublishedAt
	})

	urls := make([]string, len(payload.Videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.resolveConcurrency)
	for i, video := range payload.Videos {
		i, video := i, video
		g.Go(func() error {
			playable, err := c.FetchVideoURL(gctx, string(video.ID))
			if err != nil {
				return err
			}
			urls[i] = playable
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	entries := make([]models.VideoEntry, 0, len(payload.Videos))
	for i, video := range payload.Videos {
		if urls[i] == "" {
			continue
		}
		entries = append(entries, toVideoEntry(video, urls[i]))
	}
	return payload.Name, entries, nil
}

// FetchVideoURL returns the HD URL when present, else the standard URL, else "".
// A 404 counts as absent; other failures are RemoteFetchErrors.
func (c *Client) FetchVideoURL(ctx context.Context, videoID string) (string, error) {
	var payload videoResponse
	if err := c.getJSON(ctx, EndpointVideo, videoID, &payload); err != nil {
		var rfe *appErrors.RemoteFetchError
		if errors.As(err, &rfe) && rfe.Status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if payload.HDVideoURL != "" {
		return payload.HDVideoURL, nil
	}
	return payload.VideoURL, nil
}

func toVideoEntry(video lessonVideo, playable string) models.VideoEntry {
	title := untitledVideo
	if video.Name != nil && *video.Name != "" {
		title = *video.Name
	}
	entry := models.VideoEntry{
		ID:           string(video.ID),
		Title:        title,
		PublishedRaw: video.PublishedAt,
		PublishedAt:  parsePublished(video.PublishedAt),
		PlayableURL:  playable,
	}
	entry.PDFs = decodePDFs(video.PDFs, title)
	return entry
}

func parsePublished(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// decodePDFs tolerates a missing or non-list "pdfs" field and skips entries without a URL.
func decodePDFs(raw json.RawMessage, fallbackTitle string) []models.PDFLink {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	pdfs := make([]models.PDFLink, 0, len(items))
	for _, item := range items {
		var pdf pdfEntry
		if err := json.Unmarshal(item, &pdf); err != nil || pdf.URL == "" {
			continue
		}
		if pdf.Title == "" {
			pdf.Title = fallbackTitle
		}
		pdfs = append(pdfs, models.PDFLink{Title: pdf.Title, URL: pdf.URL})
	}
	if len(pdfs) == 0 {
		return nil
	}
	return pdfs
}

func (c *Client) endpointURL(endpoint, id string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, endpoint, url.PathEscape(id))
}

func (c *Client) getJSON(ctx context.Context, endpoint, id string, target interface{}) error {
	start := time.Now()
	err := c.get(ctx, endpoint, id, target)
	if c.observer != nil {
		c.observer.ObserveRemoteFetch(endpoint, outcomeOf(err), time.Since(start))
	}
	return err
}

func (c *Client) get(ctx context.Context, endpoint, id string, target interface{}) error {
	reqURL := c.endpointURL(endpoint, id)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &appErrors.RemoteFetchError{Endpoint: endpoint, ID: id, Err: ctx.Err()}
			}
		}

		retry, err := c.do(ctx, endpoint, id, reqURL, target)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		c.logger.Debug("course api request failed, retrying",
			zap.String("endpoint", endpoint), zap.String("id", id), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return lastErr
}

// do performs one request. The boolean reports whether the failure is retryable.
func (c *Client) do(ctx context.Context, endpoint, id, reqURL string, target interface{}) (bool, error) {
	fail := func(status int, err error) *appErrors.RemoteFetchError {
		return &appErrors.RemoteFetchError{Endpoint: endpoint, ID: id, Status: status, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fail(0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, fail(resp.StatusCode, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return false, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var rfe *appErrors.RemoteFetchError
	if errors.As(err, &rfe) && rfe.Status == http.StatusNotFound {
		return OutcomeNotFound
	}
	return OutcomeError
}
