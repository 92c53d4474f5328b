// internal/orchestrator/poller.go - Machines à états de polling
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fiche-worker/internal/assistant"
	"fiche-worker/internal/retry"
	"fiche-worker/pkg/models"
)

// AttachmentPolicy borne l'attente de l'indexation d'un fichier dans
// son vector store
type AttachmentPolicy struct {
	MaxAttempts   int
	Base          time.Duration
	Cap           time.Duration
	RateLimitWait time.Duration
}

// DefaultAttachmentPolicy: 30 tentatives, attente progressive
// min(1s*(1+n/5), 3s), 5s sur rate limit
func DefaultAttachmentPolicy() AttachmentPolicy {
	return AttachmentPolicy{
		MaxAttempts:   30,
		Base:          time.Second,
		Cap:           3 * time.Second,
		RateLimitWait: 5 * time.Second,
	}
}

// RunPollPolicy borne l'observation d'un run distant. RateLimitWait
// est l'attente dédiée après un 429, plus longue que l'intervalle.
type RunPollPolicy struct {
	MaxAttempts   int
	Interval      time.Duration
	RateLimitWait time.Duration
}

// InteractivePolicy est utilisée sur le chemin HTTP: une attente
// courte, l'appelant re-sollicitera l'endpoint de statut
func InteractivePolicy() RunPollPolicy {
	return RunPollPolicy{MaxAttempts: 3, Interval: 10 * time.Second, RateLimitWait: 15 * time.Second}
}

// BackgroundPolicy est utilisée par le worker de fond: le run peut
// durer plusieurs minutes
func BackgroundPolicy() RunPollPolicy {
	return RunPollPolicy{MaxAttempts: 500, Interval: 8 * time.Second, RateLimitWait: 15 * time.Second}
}

var errRunStillActive = errors.New("run still active")

// WaitForAttachment attend que le fichier soit indexé. Un 404 signifie
// que l'indexation n'a pas encore démarré et consomme une tentative;
// un statut failed est définitif; l'épuisement du budget retourne une
// *BudgetExhaustedError.
func (o *Orchestrator) WaitForAttachment(ctx context.Context, vectorStoreID, fileID string) error {
	policy := retry.Progressive{
		Base:          o.attachPolicy.Base,
		Cap:           o.attachPolicy.Cap,
		RateLimitWait: o.attachPolicy.RateLimitWait,
	}

	return retry.Do(ctx, o.attachPolicy.MaxAttempts, policy, func(ctx context.Context) error {
		status, err := o.client.GetFileStatus(ctx, vectorStoreID, fileID)
		if err != nil {
			if assistant.IsNotFound(err) {
				// L'attachement n'est pas encore visible côté distant
				return fmt.Errorf("attachment not yet visible: %w", err)
			}
			return err
		}

		switch status {
		case models.AttachCompleted:
			return nil
		case models.AttachFailed:
			return retry.Permanent(&UpstreamTerminalError{Reason: "document indexing failed"})
		default:
			return fmt.Errorf("attachment status %s", status)
		}
	})
}

// Tick observe une fois le statut du run distant et persiste la
// transition si le statut a changé. Un job déjà terminal n'est jamais
// ré-observé ni réécrit.
func (o *Orchestrator) Tick(ctx context.Context, job *models.AnalysisJob) (models.RunStatus, error) {
	if job.Status.IsTerminal() {
		return job.Status, nil
	}

	status, err := o.client.GetRunStatus(ctx, job.ThreadID, job.RunID)
	if err != nil {
		return job.Status, classifyUpstream(err)
	}

	if status != job.Status {
		log.Printf("Tick: job %s status %s -> %s", job.ID, job.Status, status)
		if err := o.jobs.UpdateJobStatus(ctx, job.ID, status, terminalReason(status)); err != nil {
			return status, &PersistenceError{Op: "update job status", Err: err}
		}
		job.Status = status
	}

	return status, nil
}

// WaitForRun observe le run jusqu'à un état terminal, dans la limite
// de policy. failed/cancelled/expired sont immédiatement définitifs;
// un timeout sur l'observation consomme une tentative et continue.
func (o *Orchestrator) WaitForRun(ctx context.Context, job *models.AnalysisJob, policy RunPollPolicy) (models.RunStatus, error) {
	err := retry.Do(ctx, policy.MaxAttempts, retry.Fixed{Interval: policy.Interval, RateLimitWait: policy.RateLimitWait}, func(ctx context.Context) error {
		status, err := o.Tick(ctx, job)
		if err != nil {
			var persistErr *PersistenceError
			if errors.As(err, &persistErr) {
				return retry.Permanent(err)
			}
			var terminalErr *UpstreamTerminalError
			if errors.As(err, &terminalErr) {
				return retry.Permanent(err)
			}
			return err
		}

		switch {
		case status == models.StatusCompleted:
			return nil
		case status.IsTerminal():
			return retry.Permanent(&UpstreamTerminalError{Status: status, Reason: terminalReason(status)})
		default:
			return errRunStillActive
		}
	})

	return job.Status, err
}

// waitRun est la variante sans persistance, pour les runs éphémères
// (cartes, quiz) qui n'ont pas de ligne de job associée
func (o *Orchestrator) waitRun(ctx context.Context, threadID, runID string, policy RunPollPolicy) error {
	return retry.Do(ctx, policy.MaxAttempts, retry.Fixed{Interval: policy.Interval, RateLimitWait: policy.RateLimitWait}, func(ctx context.Context) error {
		status, err := o.client.GetRunStatus(ctx, threadID, runID)
		if err != nil {
			return classifyUpstream(err)
		}

		switch {
		case status == models.StatusCompleted:
			return nil
		case status.IsTerminal():
			return retry.Permanent(&UpstreamTerminalError{Status: status, Reason: terminalReason(status)})
		default:
			return errRunStillActive
		}
	})
}

// terminalReason fournit le message d'erreur persisté avec une
// transition terminale en échec
func terminalReason(status models.RunStatus) string {
	switch status {
	case models.StatusFailed:
		return "document analysis run failed"
	case models.StatusCancelled:
		return "document analysis run was cancelled"
	case models.StatusExpired:
		return "document analysis run expired"
	}
	return ""
}
