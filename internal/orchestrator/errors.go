// internal/orchestrator/errors.go - Classification des échecs du pipeline
package orchestrator

import (
	"errors"
	"fmt"

	"fiche-worker/internal/assistant"
	"fiche-worker/internal/retry"
	"fiche-worker/internal/storage"
	"fiche-worker/pkg/models"
)

// Les échecs de stockage et de rapatriement sont produits par le
// service de documents; le budget épuisé par l'utilitaire de retry.
// Les alias les rattachent à la même taxonomie.
type (
	StorageError         = storage.StorageError
	FetchError           = storage.FetchError
	BudgetExhaustedError = retry.BudgetExhaustedError
)

// UpstreamTransientError enveloppe un échec upstream qui peut être
// retenté: timeout réseau, 429, 5xx.
type UpstreamTransientError struct {
	Err error
}

func (e *UpstreamTransientError) Error() string {
	return fmt.Sprintf("transient upstream failure: %v", e.Err)
}

func (e *UpstreamTransientError) Unwrap() error {
	return e.Err
}

// UpstreamTerminalError signale un échec upstream définitif: run
// failed/cancelled/expired, indexation échouée, ou réponse 4xx qui ne
// changera pas en réessayant.
type UpstreamTerminalError struct {
	Status models.RunStatus // statut terminal du run, si applicable
	Reason string
	Err    error
}

func (e *UpstreamTerminalError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream terminal failure (run %s): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("upstream terminal failure: %s", e.Reason)
}

func (e *UpstreamTerminalError) Unwrap() error {
	return e.Err
}

// PersistenceError signale un échec d'écriture en base, distinct d'un
// échec de génération: le contenu existe mais n'a pas pu être persisté.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrNoAssistantResponse est retournée quand un run est terminé mais
// que le thread ne contient aucun message de l'assistant
var ErrNoAssistantResponse = errors.New("no assistant response in thread")

// classifyUpstream range une erreur du client assistant dans la
// taxonomie: transient si la retenter a un sens, terminal sinon
func classifyUpstream(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *assistant.APIError
	if errors.As(err, &apiErr) {
		// Un 404 signifie qu'une ressource fraîchement créée n'est pas
		// encore visible côté distant, pas une panne définitive
		if apiErr.IsRateLimited() || apiErr.IsNotFound() || apiErr.StatusCode >= 500 {
			return &UpstreamTransientError{Err: err}
		}
		return &UpstreamTerminalError{Reason: apiErr.Message, Err: err}
	}

	// Timeouts et pannes réseau: l'appel peut être retenté
	return &UpstreamTransientError{Err: err}
}
