package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fiche-worker/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestUploadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "assistants", r.FormValue("purpose"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cours.pdf", header.Filename)

		w.Write([]byte(`{"id": "file-123"}`))
	})

	fileID, err := client.UploadFile(context.Background(), "cours.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "file-123", fileID)
}

func TestCreateVectorStore(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vector_stores", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"id": "vs-42"}`))
	})

	vsID, err := client.CreateVectorStore(context.Background(), "Documentation cours.pdf")
	require.NoError(t, err)
	assert.Equal(t, "vs-42", vsID)
}

func TestGetFileStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vector_stores/vs-42/files/file-123", r.URL.Path)
		w.Write([]byte(`{"status": "completed"}`))
	})

	status, err := client.GetFileStatus(context.Background(), "vs-42", "file-123")
	require.NoError(t, err)
	assert.Equal(t, models.AttachCompleted, status)
}

func TestGetFileStatusNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
	})

	_, err := client.GetFileStatus(context.Background(), "vs-42", "file-123")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRateLimited(err))
}

func TestRateLimitedError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit reached"}}`, http.StatusTooManyRequests)
	})

	_, err := client.CreateThread(context.Background())
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limit reached", apiErr.Message)
}

func TestStartRunAndStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads/th-1/runs":
			w.Write([]byte(`{"id": "run-9", "status": "queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/threads/th-1/runs/run-9":
			w.Write([]byte(`{"id": "run-9", "status": "in_progress"}`))
		default:
			http.NotFound(w, r)
		}
	})

	runID, err := client.StartRun(context.Background(), "th-1", "asst-1")
	require.NoError(t, err)
	assert.Equal(t, "run-9", runID)

	status, err := client.GetRunStatus(context.Background(), "th-1", "run-9")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, status)
}

func TestListMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/th-1/messages", r.URL.Path)
		w.Write([]byte(`{"data": [
			{"role": "assistant", "content": [{"type": "text", "text": {"value": "<article>fiche</article>"}}], "created_at": 1700000001},
			{"role": "user", "content": [{"type": "text", "text": {"value": "Analyse ce document"}}], "created_at": 1700000000}
		]}`))
	})

	messages, err := client.ListMessages(context.Background(), "th-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[0].Role)
	assert.Equal(t, "<article>fiche</article>", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
}
