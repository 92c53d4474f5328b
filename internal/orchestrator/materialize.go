// internal/orchestrator/materialize.go - Matérialisation des artefacts
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strings"

	"fiche-worker/pkg/models"

	"gorm.io/gorm"
)

var (
	jsonFenceRe = regexp.MustCompile("```json\n?")
	fenceRe     = regexp.MustCompile("```\n?")
)

// stripFences retire les clôtures de code que l'assistant ajoute
// parfois autour de sa sortie
func stripFences(content string) string {
	content = jsonFenceRe.ReplaceAllString(content, "")
	return fenceRe.ReplaceAllString(content, "")
}

// Materialize transforme la réponse de l'assistant en fiche persistée.
// Idempotent: une fiche existante court-circuite, et en cas de course
// entre deux writers l'index unique sur job_id tranche, jamais deux
// artefacts pour un même job.
func (o *Orchestrator) Materialize(ctx context.Context, job *models.AnalysisJob) (*models.Fiche, error) {
	existing, err := o.artifacts.GetFicheByJobID(ctx, job.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &PersistenceError{Op: "lookup fiche", Err: err}
	}

	content, err := o.firstAssistantMessage(ctx, job.ThreadID)
	if err != nil {
		return nil, err
	}

	fiche := &models.Fiche{
		JobID:         job.ID,
		MatiereID:     job.MatiereID,
		Nom:           job.FicheName,
		Contenu:       strings.TrimSpace(stripFences(content)),
		Language:      job.Language,
		ThreadID:      job.ThreadID,
		VectorStoreID: job.VectorStoreID,
	}

	if err := o.artifacts.CreateFiche(ctx, fiche); err != nil {
		// Un writer concurrent a pu gagner la course sur job_id
		if winner, lookupErr := o.artifacts.GetFicheByJobID(ctx, job.ID); lookupErr == nil {
			return winner, nil
		}
		return nil, &PersistenceError{Op: "create fiche", Err: err}
	}

	log.Printf("Materialize: fiche %s created for job %s", fiche.ID, job.ID)
	return fiche, nil
}

// carteItem est le format de sortie attendu de l'assistant pour une carte
type carteItem struct {
	Titre   string `json:"titre"`
	Contenu string `json:"contenu"`
}

// GenerateCartes lance un run éphémère contre le vector store du job
// et remplace les cartes mémo de la fiche par le résultat
func (o *Orchestrator) GenerateCartes(ctx context.Context, job *models.AnalysisJob, fiche *models.Fiche) (int, error) {
	content, err := o.runEphemeral(ctx, job.VectorStoreID, cartesInstructions(job.Language), cartesPrompt(job.Language))
	if err != nil {
		return 0, err
	}

	var items []carteItem
	if err := json.Unmarshal([]byte(stripFences(content)), &items); err != nil {
		return 0, &UpstreamTerminalError{Reason: "invalid cartes payload", Err: err}
	}

	cartes := make([]models.CarteMemo, 0, len(items))
	for _, item := range items {
		cartes = append(cartes, models.CarteMemo{Titre: item.Titre, Contenu: item.Contenu})
	}

	if err := o.artifacts.ReplaceCartes(ctx, fiche.ID, cartes); err != nil {
		return 0, &PersistenceError{Op: "save cartes", Err: err}
	}

	log.Printf("GenerateCartes: %d cartes saved for fiche %s", len(cartes), fiche.ID)
	return len(cartes), nil
}

// quizItem est le format de sortie attendu de l'assistant pour une question
type quizItem struct {
	Question string                 `json:"question"`
	Options  map[string]interface{} `json:"options"`
	Reponse  string                 `json:"réponse"`
}

// GenerateQuiz lance un run éphémère contre le vector store du job et
// remplace les questions de QCM de la fiche par le résultat
func (o *Orchestrator) GenerateQuiz(ctx context.Context, job *models.AnalysisJob, fiche *models.Fiche) (int, error) {
	content, err := o.runEphemeral(ctx, job.VectorStoreID, quizInstructions(job.Language), quizPrompt)
	if err != nil {
		return 0, err
	}

	var items []quizItem
	if err := json.Unmarshal([]byte(stripFences(content)), &items); err != nil {
		return 0, &UpstreamTerminalError{Reason: "invalid quiz payload", Err: err}
	}

	questions := make([]models.QCMQuestion, 0, len(items))
	for _, item := range items {
		questions = append(questions, models.QCMQuestion{
			Question: item.Question,
			Options:  models.JSON(item.Options),
			Reponse:  item.Reponse,
		})
	}

	if err := o.artifacts.ReplaceQCM(ctx, fiche.ID, questions); err != nil {
		return 0, &PersistenceError{Op: "save quiz", Err: err}
	}

	log.Printf("GenerateQuiz: %d questions saved for fiche %s", len(questions), fiche.ID)
	return len(questions), nil
}

// runEphemeral crée un assistant et un thread jetables, lance un run
// avec la politique de fond et retourne la première réponse
func (o *Orchestrator) runEphemeral(ctx context.Context, vectorStoreID, instructions, prompt string) (string, error) {
	assistantID, err := o.client.CreateAssistant(ctx, "Expert PDF", instructions, vectorStoreID)
	if err != nil {
		return "", classifyUpstream(err)
	}

	threadID, err := o.client.CreateThread(ctx)
	if err != nil {
		return "", classifyUpstream(err)
	}

	if err := o.client.PostMessage(ctx, threadID, "user", prompt); err != nil {
		return "", classifyUpstream(err)
	}

	runID, err := o.client.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return "", classifyUpstream(err)
	}

	if err := o.waitRun(ctx, threadID, runID, o.background); err != nil {
		return "", err
	}

	return o.firstAssistantMessage(ctx, threadID)
}

// firstAssistantMessage retourne le contenu du premier message de
// l'assistant dans le thread
func (o *Orchestrator) firstAssistantMessage(ctx context.Context, threadID string) (string, error) {
	messages, err := o.client.ListMessages(ctx, threadID)
	if err != nil {
		return "", classifyUpstream(err)
	}

	for _, msg := range messages {
		if msg.Role == "assistant" && msg.Content != "" {
			return msg.Content, nil
		}
	}

	return "", ErrNoAssistantResponse
}
