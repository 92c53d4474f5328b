// internal/orchestrator/pipeline.go - Pipeline de soumission d'un document
package orchestrator

import (
	"bytes"
	"context"
	"io"
	"log"
	"time"

	"fiche-worker/internal/assistant"
	"fiche-worker/internal/jobs"
	"fiche-worker/internal/retry"
	"fiche-worker/pkg/models"

	"github.com/google/uuid"
)

const (
	attachAttempts      = 3
	attachRateLimitWait = 5 * time.Second
)

// DocumentStore est la partie du service de stockage consommée par le
// pipeline
type DocumentStore interface {
	StoreDocument(ctx context.Context, filename, contentType string, data io.Reader) (string, error)
	FetchPublic(ctx context.Context, path string) ([]byte, error)
}

// Orchestrator pilote le cycle de vie complet d'une analyse: soumission,
// polling du run distant et matérialisation des artefacts.
type Orchestrator struct {
	client    assistant.Client
	docs      DocumentStore
	jobs      jobs.JobService
	artifacts jobs.ArtifactRepository

	attachPolicy AttachmentPolicy
	interactive  RunPollPolicy
	background   RunPollPolicy
}

// Config regroupe les politiques de polling de l'orchestrateur
type Config struct {
	AttachPolicy      AttachmentPolicy
	InteractivePolicy RunPollPolicy
	BackgroundPolicy  RunPollPolicy
}

func New(client assistant.Client, docs DocumentStore, jobService jobs.JobService, artifacts jobs.ArtifactRepository, cfg Config) *Orchestrator {
	if cfg.AttachPolicy.MaxAttempts == 0 {
		cfg.AttachPolicy = DefaultAttachmentPolicy()
	}
	if cfg.InteractivePolicy.MaxAttempts == 0 {
		cfg.InteractivePolicy = InteractivePolicy()
	}
	if cfg.BackgroundPolicy.MaxAttempts == 0 {
		cfg.BackgroundPolicy = BackgroundPolicy()
	}

	return &Orchestrator{
		client:       client,
		docs:         docs,
		jobs:         jobService,
		artifacts:    artifacts,
		attachPolicy: cfg.AttachPolicy,
		interactive:  cfg.InteractivePolicy,
		background:   cfg.BackgroundPolicy,
	}
}

// Background retourne la politique de polling de fond configurée,
// utilisée par le pool de workers
func (o *Orchestrator) Background() RunPollPolicy {
	return o.background
}

// SubmitRequest décrit un document validé, prêt à être soumis
type SubmitRequest struct {
	Filename    string // déjà sanitisé
	ContentType string
	Content     io.Reader
	Language    string
	Size        string
	NiveauEtude string
	FicheName   string
	MatiereID   uuid.UUID
}

// Submit déroule le pipeline complet: stockage du document, indexation
// dans un vector store, création de l'assistant et lancement du run.
// Le job n'est persisté qu'en toute fin: aucun échec intermédiaire ne
// laisse de ligne en base.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.SubmitResponse, error) {
	path, err := o.docs.StoreDocument(ctx, req.Filename, req.ContentType, req.Content)
	if err != nil {
		return nil, err
	}
	log.Printf("Submit: document stored at %s", path)

	content, err := o.docs.FetchPublic(ctx, path)
	if err != nil {
		return nil, err
	}

	fileID, err := o.client.UploadFile(ctx, req.Filename, bytes.NewReader(content))
	if err != nil {
		return nil, classifyUpstream(err)
	}
	log.Printf("Submit: file uploaded, id %s", fileID)

	vectorStoreID, err := o.client.CreateVectorStore(ctx, "Documentation "+req.Filename)
	if err != nil {
		return nil, classifyUpstream(err)
	}

	err = retry.Do(ctx, attachAttempts, retry.Exponential{Base: time.Second, RateLimitWait: attachRateLimitWait}, func(ctx context.Context) error {
		return o.client.AttachFile(ctx, vectorStoreID, fileID)
	})
	if err != nil {
		return nil, err
	}

	if err := o.WaitForAttachment(ctx, vectorStoreID, fileID); err != nil {
		return nil, err
	}
	log.Printf("Submit: file %s indexed in vector store %s", fileID, vectorStoreID)

	assistantID, err := o.client.CreateAssistant(ctx, "Expert PDF", ficheInstructions, vectorStoreID)
	if err != nil {
		return nil, classifyUpstream(err)
	}

	threadID, err := o.client.CreateThread(ctx)
	if err != nil {
		return nil, classifyUpstream(err)
	}

	if err := o.client.PostMessage(ctx, threadID, "user", fichePrompt(req.Language, req.Size, req.NiveauEtude)); err != nil {
		return nil, classifyUpstream(err)
	}

	runID, err := o.client.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	log.Printf("Submit: run %s started on thread %s", runID, threadID)

	job := &models.AnalysisJob{
		MatiereID:     req.MatiereID,
		ThreadID:      threadID,
		RunID:         runID,
		AssistantID:   assistantID,
		FileID:        fileID,
		VectorStoreID: vectorStoreID,
		StoragePath:   path,
		Status:        models.StatusQueued,
		Language:      req.Language,
		Size:          req.Size,
		NiveauEtude:   req.NiveauEtude,
		FicheName:     req.FicheName,
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "create job", Err: err}
	}

	return &models.SubmitResponse{
		JobID:         job.ID,
		ThreadID:      threadID,
		RunID:         runID,
		FileID:        fileID,
		VectorStoreID: vectorStoreID,
		StoragePath:   path,
	}, nil
}
