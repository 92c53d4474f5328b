// internal/assistant/client.go - Client HTTP du service génératif (API assistants v2)
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"fiche-worker/pkg/models"
)

// Message est un message d'un thread distant
type Message struct {
	Role      string
	Content   string
	CreatedAt int64
}

// Client définit les opérations du service génératif consommées par
// l'orchestrateur: fichiers, vector stores, assistants, threads et runs.
type Client interface {
	UploadFile(ctx context.Context, filename string, data io.Reader) (string, error)
	CreateVectorStore(ctx context.Context, name string) (string, error)
	AttachFile(ctx context.Context, vectorStoreID, fileID string) error
	GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (models.AttachmentStatus, error)
	CreateAssistant(ctx context.Context, name, instructions, vectorStoreID string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, role, content string) error
	StartRun(ctx context.Context, threadID, assistantID string) (string, error)
	GetRunStatus(ctx context.Context, threadID, runID string) (models.RunStatus, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// Config contient la configuration du client
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type httpClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Vérification à la compilation que httpClient satisfait l'interface
var _ Client = (*httpClient)(nil)

// NewClient crée un client HTTP pour le service génératif
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assistant api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &httpClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}

func (c *httpClient) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, path, body, "application/json", out)
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error.Message
}

func (c *httpClient) UploadFile(ctx context.Context, filename string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/files", &buf, writer.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *httpClient) CreateVectorStore(ctx context.Context, name string) (string, error) {
	payload := map[string]string{"name": name}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/vector_stores", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *httpClient) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	payload := map[string]string{"file_id": fileID}
	return c.postJSON(ctx, "/vector_stores/"+vectorStoreID+"/files", payload, nil)
}

func (c *httpClient) GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (models.AttachmentStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := "/vector_stores/" + vectorStoreID + "/files/" + fileID
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return "", err
	}
	return models.AttachmentStatus(resp.Status), nil
}

func (c *httpClient) CreateAssistant(ctx context.Context, name, instructions, vectorStoreID string) (string, error) {
	payload := map[string]interface{}{
		"name":         name,
		"instructions": instructions,
		"model":        c.model,
		"tools":        []map[string]string{{"type": "file_search"}},
		"tool_resources": map[string]interface{}{
			"file_search": map[string]interface{}{
				"vector_store_ids": []string{vectorStoreID},
			},
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/assistants", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *httpClient) CreateThread(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/threads", nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *httpClient) PostMessage(ctx context.Context, threadID, role, content string) error {
	payload := map[string]string{"role": role, "content": content}
	return c.postJSON(ctx, "/threads/"+threadID+"/messages", payload, nil)
}

func (c *httpClient) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	payload := map[string]string{"assistant_id": assistantID}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/threads/"+threadID+"/runs", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *httpClient) GetRunStatus(ctx context.Context, threadID, runID string) (models.RunStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := "/threads/" + threadID + "/runs/" + runID
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return "", err
	}
	return models.RunStatus(resp.Status), nil
}

func (c *httpClient) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var resp struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
			CreatedAt int64 `json:"created_at"`
		} `json:"data"`
	}

	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil, "", &resp); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(resp.Data))
	for _, m := range resp.Data {
		text := ""
		for _, part := range m.Content {
			if part.Type == "text" {
				text = part.Text.Value
				break
			}
		}
		messages = append(messages, Message{
			Role:      m.Role,
			Content:   text,
			CreatedAt: m.CreatedAt,
		})
	}
	return messages, nil
}
