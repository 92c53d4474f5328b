package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"fiche-worker/internal/assistant"
	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/internal/worker"
	"fiche-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubClient renvoie des réponses figées du service génératif
type stubClient struct {
	messages []assistant.Message
}

func (s *stubClient) UploadFile(ctx context.Context, filename string, data io.Reader) (string, error) {
	return "file-123", nil
}
func (s *stubClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	return "vs-42", nil
}
func (s *stubClient) AttachFile(ctx context.Context, vectorStoreID, fileID string) error { return nil }
func (s *stubClient) GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (models.AttachmentStatus, error) {
	return models.AttachCompleted, nil
}
func (s *stubClient) CreateAssistant(ctx context.Context, name, instructions, vectorStoreID string) (string, error) {
	return "asst-1", nil
}
func (s *stubClient) CreateThread(ctx context.Context) (string, error) { return "th-1", nil }
func (s *stubClient) PostMessage(ctx context.Context, threadID, role, content string) error {
	return nil
}
func (s *stubClient) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	return "run-9", nil
}
func (s *stubClient) GetRunStatus(ctx context.Context, threadID, runID string) (models.RunStatus, error) {
	return models.StatusCompleted, nil
}
func (s *stubClient) ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error) {
	return s.messages, nil
}

// stubDocs évite tout accès disque/réseau
type stubDocs struct{}

func (stubDocs) StoreDocument(ctx context.Context, filename, contentType string, data io.Reader) (string, error) {
	return "docs/1700000000000-" + filename, nil
}
func (stubDocs) FetchPublic(ctx context.Context, path string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

// exhaustedDocs simule un backend de stockage hors service: toutes les
// tentatives sont consommées avant d'abandonner
type exhaustedDocs struct{}

func (exhaustedDocs) StoreDocument(ctx context.Context, filename, contentType string, data io.Reader) (string, error) {
	return "", &orchestrator.StorageError{
		Path: "docs/" + filename,
		Err:  &orchestrator.BudgetExhaustedError{Attempts: 3, Last: errors.New("backend down")},
	}
}

func (exhaustedDocs) FetchPublic(ctx context.Context, path string) ([]byte, error) {
	return nil, &orchestrator.FetchError{URL: path, Err: errors.New("backend down")}
}

// stubJobService garde les jobs en mémoire
type stubJobService struct {
	jobList []*models.AnalysisJob
}

func (s *stubJobService) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	s.jobList = append(s.jobList, job)
	return nil
}

func (s *stubJobService) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	for _, job := range s.jobList {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubJobService) ListJobs(ctx context.Context, status string, matiereID *uuid.UUID) ([]*models.AnalysisJob, error) {
	return s.jobList, nil
}

func (s *stubJobService) ListActiveJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	return nil, nil
}

func (s *stubJobService) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errMsg string) error {
	for _, job := range s.jobList {
		if job.ID == id && !job.Status.IsTerminal() {
			job.Status = status
			job.Error = errMsg
		}
	}
	return nil
}

func (s *stubJobService) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

// stubArtifacts garde les fiches en mémoire
type stubArtifacts struct {
	fiches map[uuid.UUID]*models.Fiche
}

func (s *stubArtifacts) GetFicheByJobID(ctx context.Context, jobID uuid.UUID) (*models.Fiche, error) {
	if fiche, ok := s.fiches[jobID]; ok {
		return fiche, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubArtifacts) CreateFiche(ctx context.Context, fiche *models.Fiche) error {
	if fiche.ID == uuid.Nil {
		fiche.ID = uuid.New()
	}
	s.fiches[fiche.JobID] = fiche
	return nil
}

func (s *stubArtifacts) ReplaceCartes(ctx context.Context, ficheID uuid.UUID, cartes []models.CarteMemo) error {
	return nil
}

func (s *stubArtifacts) ReplaceQCM(ctx context.Context, ficheID uuid.UUID, questions []models.QCMQuestion) error {
	return nil
}

func setupTestRouter(t *testing.T, client assistant.Client, jobService jobs.JobService) *gin.Engine {
	return setupTestRouterWithDocs(t, client, jobService, stubDocs{})
}

func setupTestRouterWithDocs(t *testing.T, client assistant.Client, jobService jobs.JobService, docs orchestrator.DocumentStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	orch := orchestrator.New(client, docs, jobService, &stubArtifacts{fiches: make(map[uuid.UUID]*models.Fiche)}, orchestrator.Config{
		AttachPolicy:      orchestrator.AttachmentPolicy{MaxAttempts: 3, Base: time.Millisecond, Cap: time.Millisecond, RateLimitWait: time.Millisecond},
		InteractivePolicy: orchestrator.RunPollPolicy{MaxAttempts: 2, Interval: time.Millisecond},
		BackgroundPolicy:  orchestrator.RunPollPolicy{MaxAttempts: 5, Interval: time.Millisecond},
	})
	pool := worker.NewWorkerPool(jobService, orch, nil)

	return SetupRouter(jobService, orch, pool)
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t, &stubClient{}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func multipartSubmitBody(t *testing.T, includeFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if includeFile {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="cours.pdf"`)
		header.Set("Content-Type", "application/pdf")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.WriteField("language", "fr"))
	require.NoError(t, writer.WriteField("size", "moyen"))
	require.NoError(t, writer.WriteField("niveau_etude", "lycée"))
	require.NoError(t, writer.WriteField("matiere_id", uuid.New().String()))
	require.NoError(t, writer.WriteField("fiche_name", "Ma fiche"))
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestSubmitAnalysis(t *testing.T) {
	jobService := &stubJobService{}
	router := setupTestRouter(t, &stubClient{}, jobService)

	body, contentType := multipartSubmitBody(t, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.JobID)
	assert.Equal(t, "th-1", resp.ThreadID)
	assert.Equal(t, "run-9", resp.RunID)

	require.Len(t, jobService.jobList, 1)
	assert.Equal(t, models.StatusQueued, jobService.jobList[0].Status)
}

func TestSubmitAnalysisStorageExhaustedIsServerError(t *testing.T) {
	// L'échec de stockage enveloppe son propre budget épuisé: il doit
	// sortir en 500, pas en 504 réservé aux timeouts de l'assistant
	jobService := &stubJobService{}
	router := setupTestRouterWithDocs(t, &stubClient{}, jobService, exhaustedDocs{})

	body, contentType := multipartSubmitBody(t, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.Empty(t, jobService.jobList)
}

func TestSubmitAnalysisMissingFile(t *testing.T) {
	router := setupTestRouter(t, &stubClient{}, &stubJobService{})

	body, contentType := multipartSubmitBody(t, false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_errors")
}

func TestGetAnalysisStatusInvalidID(t *testing.T) {
	router := setupTestRouter(t, &stubClient{}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAnalysisStatusUnknownJob(t *testing.T) {
	router := setupTestRouter(t, &stubClient{}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+uuid.New().String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalysisStatusWithResponse(t *testing.T) {
	jobService := &stubJobService{}
	job := &models.AnalysisJob{
		ID:        uuid.New(),
		MatiereID: uuid.New(),
		ThreadID:  "th-1",
		RunID:     "run-9",
		Status:    models.StatusInProgress,
		FicheName: "Ma fiche",
	}
	jobService.jobList = append(jobService.jobList, job)

	client := &stubClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "<article>fiche</article>"},
			{Role: "user", Content: "Analyse ce document"},
		},
	}
	router := setupTestRouter(t, client, jobService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+job.ID.String(), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.HasResponse)
	assert.Equal(t, models.StatusCompleted, resp.RunStatus)
	assert.Len(t, resp.Messages, 2)
}

func TestWorkerStatsEndpoint(t *testing.T) {
	router := setupTestRouter(t, &stubClient{}, &stubJobService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/worker/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worker_pool")
}
