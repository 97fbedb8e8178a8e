package courseapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

type observerStub struct {
	mu    sync.Mutex
	calls []string
}

func (o *observerStub) ObserveRemoteFetch(endpoint, outcome string, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint+":"+outcome)
}

func newTestServer(t *testing.T, routes map[string]string, statuses map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if status, ok := statuses[path]; ok {
			w.WriteHeader(status)
			return
		}
		body, ok := routes[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSubjectsDefaultsMissingFields(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/classroom/77": `{"classroom":[{"id":101,"name":"Physics","notes":4,"videos":12},{"id":"c-2"}]}`,
	}, nil)
	client := NewClient(Options{BaseURL: srv.URL + "/api"})

	subjects := client.FetchSubjects(context.Background(), "77")
	require.Len(t, subjects, 2)
	assert.Equal(t, "101", subjects[0].ID)
	assert.Equal(t, "Physics", subjects[0].Name)
	assert.Equal(t, 4, subjects[0].NotesCount)
	assert.Equal(t, 12, subjects[0].VideosCount)
	assert.Equal(t, "c-2", subjects[1].ID)
	assert.Equal(t, "", subjects[1].Name)
	assert.Zero(t, subjects[1].NotesCount)
	assert.Zero(t, subjects[1].VideosCount)
}

func TestFetchSubjectsSoftFails(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/classroom/bad-json": `{"classroom":`,
	}, map[string]int{"/classroom/down": http.StatusInternalServerError})
	observer := &observerStub{}
	client := NewClient(Options{BaseURL: srv.URL + "/api", Observer: observer})

	assert.Empty(t, client.FetchSubjects(context.Background(), "down"))
	assert.Empty(t, client.FetchSubjects(context.Background(), "bad-json"))
	assert.NotNil(t, client.FetchSubjects(context.Background(), "missing"))
	assert.Equal(t, []string{"classroom:error", "classroom:error", "classroom:not_found"}, observer.calls)
}

func TestFetchLessonVideosOrdersAndDropsUnresolved(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/lesson/5": `{"name":"Mechanics","videos":[
			{"id":3,"name":"Third","published_at":"2024-03-01T10:00:00.000Z","pdfs":[{"title":"Notes","url":"https://cdn/3.pdf"},{"title":"no-url"},{"url":"https://cdn/3b.pdf"}]},
			{"id":1,"name":"First","published_at":"2024-01-01T10:00:00.000Z","pdfs":"not-a-list"},
			{"id":9,"name":"Undated"},
			{"id":2,"name":"Gone","published_at":"2024-02-01T10:00:00.000Z"},
			{"id":4,"published_at":"garbage"}
		]}`,
		"/video/3": `{"hd_video_url":"https://hd/3","video_url":"https://sd/3"}`,
		"/video/1": `{"video_url":"https://sd/1"}`,
		"/video/9": `{"hd_video_url":"","video_url":"https://sd/9"}`,
		"/video/2": `{}`,
		"/video/4": `{"video_url":"https://sd/4"}`,
	}, nil)

	for _, concurrency := range []int{1, 4} {
		client := NewClient(Options{BaseURL: srv.URL + "/api", ResolveConcurrency: concurrency})
		name, videos, err := client.FetchLessonVideos(context.Background(), "5")
		require.NoError(t, err)
		assert.Equal(t, "Mechanics", name)

		ids := make([]string, 0, len(videos))
		for _, v := range videos {
			ids = append(ids, v.ID)
		}
		assert.Equal(t, []string{"9", "1", "3", "4"}, ids, "concurrency %d", concurrency)

		assert.Nil(t, videos[0].PublishedAt)
		assert.Equal(t, "https://sd/9", videos[0].PlayableURL)
		assert.Equal(t, "01 Jan 2024", videos[1].PublishedLabel())
		assert.Nil(t, videos[1].PDFs)
		assert.Equal(t, "https://hd/3", videos[2].PlayableURL)
		require.Len(t, videos[2].PDFs, 2)
		assert.Equal(t, "Notes", videos[2].PDFs[0].Title)
		assert.Equal(t, "Third", videos[2].PDFs[1].Title)
		assert.Equal(t, "Untitled Video", videos[3].Title)
		assert.Equal(t, "Unknown Date", videos[3].PublishedLabel())
	}
}

func TestFetchLessonVideosPropagatesVideoFailure(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/lesson/5": `{"name":"Mechanics","videos":[{"id":1},{"id":2}]}`,
		"/video/1":  `{"video_url":"https://sd/1"}`,
		"/video/2":  `not json`,
	}, nil)
	client := NewClient(Options{BaseURL: srv.URL + "/api"})

	_, _, err := client.FetchLessonVideos(context.Background(), "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRemoteFetch))

	var rfe *appErrors.RemoteFetchError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, EndpointVideo, rfe.Endpoint)
	assert.Equal(t, "2", rfe.ID)
}

func TestFetchLessonVideosFailsOnLessonStatus(t *testing.T) {
	srv := newTestServer(t, nil, map[string]int{"/lesson/5": http.StatusServiceUnavailable})
	client := NewClient(Options{BaseURL: srv.URL + "/api"})

	_, _, err := client.FetchLessonVideos(context.Background(), "5")
	var rfe *appErrors.RemoteFetchError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, http.StatusServiceUnavailable, rfe.Status)
}

func TestFetchVideoURLNotFoundIsAbsent(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	client := NewClient(Options{BaseURL: srv.URL + "/api"})

	playable, err := client.FetchVideoURL(context.Background(), "404")
	require.NoError(t, err)
	assert.Empty(t, playable)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		current := attempts
		mu.Unlock()
		if current == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "bot-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"hd_video_url":"https://hd/1"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Options{
		BaseURL:    srv.URL,
		MaxRetries: 1,
		UserAgent:  "bot-test",
		Headers:    map[string]string{"X-Api-Key": "secret"},
	})
	playable, err := client.FetchVideoURL(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "https://hd/1", playable)
	assert.Equal(t, 2, attempts)
}
