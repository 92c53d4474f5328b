// internal/orchestrator/status.go - Observation du statut pour l'API
package orchestrator

import (
	"context"
	"errors"
	"log"

	"fiche-worker/pkg/models"
)

// Status construit la réponse de statut d'un job: messages du thread,
// présence d'une réponse et statut du run. Dès qu'une réponse de
// l'assistant existe, la fiche est matérialisée et le job marqué
// completed; sinon une seule observation du run est faite.
func (o *Orchestrator) Status(ctx context.Context, job *models.AnalysisJob) (*models.StatusResponse, error) {
	messages, err := o.client.ListMessages(ctx, job.ThreadID)
	if err != nil {
		return nil, classifyUpstream(err)
	}

	threadMessages := make([]models.ThreadMessage, 0, len(messages))
	hasResponse := false
	for _, msg := range messages {
		threadMessages = append(threadMessages, models.ThreadMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
		if msg.Role == "assistant" && msg.Content != "" {
			hasResponse = true
		}
	}

	if hasResponse {
		if job.Status != models.StatusCompleted {
			if err := o.jobs.UpdateJobStatus(ctx, job.ID, models.StatusCompleted, ""); err != nil {
				return nil, &PersistenceError{Op: "update job status", Err: err}
			}
			job.Status = models.StatusCompleted
		}

		if _, err := o.Materialize(ctx, job); err != nil {
			// La réponse existe: on la retourne même si la
			// matérialisation a échoué, elle sera retentée
			log.Printf("Status: materialization failed for job %s: %v", job.ID, err)
		}

		return &models.StatusResponse{
			Messages:    threadMessages,
			HasResponse: true,
			RunStatus:   models.StatusCompleted,
		}, nil
	}

	status, err := o.Tick(ctx, job)
	if err != nil {
		return nil, err
	}

	resp := &models.StatusResponse{
		Messages:    threadMessages,
		HasResponse: false,
		RunStatus:   status,
	}
	if status.IsTerminal() && status != models.StatusCompleted {
		resp.Error = terminalReason(status)
	}

	return resp, nil
}

// Await pilote le run avec la politique interactive puis construit la
// réponse de statut. Utilisé par l'endpoint de statut avec ?wait=1.
// Un budget interactif épuisé est restitué comme erreur explicite dans
// la réponse, sans masquer une complétion survenue entre-temps.
func (o *Orchestrator) Await(ctx context.Context, job *models.AnalysisJob) (*models.StatusResponse, error) {
	if _, err := o.WaitForRun(ctx, job, o.interactive); err != nil {
		var budgetErr *BudgetExhaustedError
		if errors.As(err, &budgetErr) {
			resp, statusErr := o.Status(ctx, job)
			if statusErr != nil {
				return nil, statusErr
			}
			if !resp.HasResponse && !resp.RunStatus.IsTerminal() {
				resp.Error = "maximum attempts reached"
			}
			return resp, nil
		}

		// Échec terminal: l'état courant du job est quand même
		// restituable
		var terminalErr *UpstreamTerminalError
		if !errors.As(err, &terminalErr) {
			return nil, err
		}
	}

	return o.Status(ctx, job)
}
