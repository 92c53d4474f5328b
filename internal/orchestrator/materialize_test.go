package orchestrator

import (
	"context"
	"testing"

	"fiche-worker/internal/assistant"
	"fiche-worker/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json fence",
			input:    "```json\n[{\"titre\": \"a\"}]\n```",
			expected: "[{\"titre\": \"a\"}]\n",
		},
		{
			name:     "bare fence",
			input:    "```\n<article>fiche</article>\n```",
			expected: "<article>fiche</article>\n",
		},
		{
			name:     "no fence",
			input:    "<article>fiche</article>",
			expected: "<article>fiche</article>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripFences(tt.input))
		})
	}
}

func TestMaterializeCreatesFiche(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "```\n<article>fiche</article>\n```", CreatedAt: 2},
			{Role: "user", Content: "Analyse ce document", CreatedAt: 1},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()

	fiche, err := o.Materialize(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, job.ID, fiche.JobID)
	assert.Equal(t, "Ma fiche", fiche.Nom)
	assert.Equal(t, "<article>fiche</article>", fiche.Contenu)
	assert.Equal(t, "th-1", fiche.ThreadID)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "<article>fiche</article>"},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()

	first, err := o.Materialize(context.Background(), job)
	require.NoError(t, err)

	second, err := o.Materialize(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "never two artifacts for one job")
	assert.Equal(t, first.Contenu, second.Contenu)
	assert.Equal(t, 1, artifacts.createCalls, "existing fiche short-circuits creation")
	assert.Len(t, artifacts.fiches, 1)
}

func TestMaterializeSurvivesCreateRace(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "<article>fiche</article>"},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()

	// Un writer concurrent insère la fiche entre le lookup et le create:
	// le premier lookup rate, le create heurte l'index unique, et le
	// second lookup retourne la fiche gagnante
	winner := &models.Fiche{JobID: job.ID, Nom: "Ma fiche", Contenu: "déjà là"}
	require.NoError(t, artifacts.CreateFiche(context.Background(), winner))
	artifacts.missOnce = true

	fiche, err := o.Materialize(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, fiche.ID)
	assert.Len(t, artifacts.fiches, 1, "never two artifacts for one job")
}

func TestMaterializeNoAssistantResponse(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "user", Content: "Analyse ce document"},
		},
	}
	o := New(client, &fakeDocs{}, &fakeJobService{}, newFakeArtifacts(), fastConfig())

	_, err := o.Materialize(context.Background(), newTestJob())
	assert.ErrorIs(t, err, ErrNoAssistantResponse)
}

func TestGenerateCartes(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "```json\n[{\"titre\": \"Énergie cinétique\", \"contenu\": \"E_c = \\\\frac{1}{2}mv^2\"}, {\"titre\": \"Aire du cercle\", \"contenu\": \"A = \\\\pi r^2\"}]\n```"},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()
	fiche := &models.Fiche{JobID: job.ID}
	require.NoError(t, artifacts.CreateFiche(context.Background(), fiche))

	count, err := o.GenerateCartes(context.Background(), job, fiche)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	cartes := artifacts.cartes[fiche.ID]
	require.Len(t, cartes, 2)
	assert.Equal(t, "Énergie cinétique", cartes[0].Titre)
}

func TestGenerateCartesInvalidPayload(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "Voici vos cartes: pas du JSON"},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()
	fiche := &models.Fiche{JobID: job.ID}
	require.NoError(t, artifacts.CreateFiche(context.Background(), fiche))

	_, err := o.GenerateCartes(context.Background(), job, fiche)
	require.Error(t, err)

	var terminalErr *UpstreamTerminalError
	assert.ErrorAs(t, err, &terminalErr)
	assert.Empty(t, artifacts.cartes[fiche.ID])
}

func TestGenerateQuiz(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: `[{"question": "Quelle est la formule de l'énergie cinétique ?", "options": {"A": "E = mc^2", "B": "E_c = 1/2 mv^2"}, "réponse": "B"}]`},
		},
	}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, &fakeJobService{}, artifacts, fastConfig())
	job := newTestJob()
	fiche := &models.Fiche{JobID: job.ID}
	require.NoError(t, artifacts.CreateFiche(context.Background(), fiche))

	count, err := o.GenerateQuiz(context.Background(), job, fiche)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	questions := artifacts.qcm[fiche.ID]
	require.Len(t, questions, 1)
	assert.Equal(t, "B", questions[0].Reponse)
	assert.Equal(t, "E_c = 1/2 mv^2", questions[0].Options["B"])
}

func TestStatusWithResponseMarksCompleted(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "<article>fiche</article>"},
			{Role: "user", Content: "Analyse ce document"},
		},
	}
	jobSvc := &fakeJobService{}
	artifacts := newFakeArtifacts()
	o := New(client, &fakeDocs{}, jobSvc, artifacts, fastConfig())
	job := newTestJob()

	resp, err := o.Status(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, resp.HasResponse)
	assert.Equal(t, models.StatusCompleted, resp.RunStatus)
	assert.Len(t, resp.Messages, 2)

	require.Len(t, jobSvc.updates, 1)
	assert.Equal(t, models.StatusCompleted, jobSvc.updates[0].status)

	// La fiche est matérialisée au passage
	assert.Len(t, artifacts.fiches, 1)
}

func TestStatusWithoutResponseObservesRun(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "user", Content: "Analyse ce document"},
		},
		getRunStatus: func(call int) (models.RunStatus, error) {
			return models.StatusInProgress, nil
		},
	}
	jobSvc := &fakeJobService{}
	o := New(client, &fakeDocs{}, jobSvc, newFakeArtifacts(), fastConfig())
	job := newTestJob()

	resp, err := o.Status(context.Background(), job)
	require.NoError(t, err)

	assert.False(t, resp.HasResponse)
	assert.Equal(t, models.StatusInProgress, resp.RunStatus)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, client.runStatusCalls, "a single observation per status call")
}

func TestAwaitBudgetExhaustedSurfacesError(t *testing.T) {
	// Le budget interactif s'épuise sur un run qui traîne: la réponse
	// porte une erreur explicite au lieu d'un statut silencieux.
	client := &fakeClient{
		getRunStatus: func(call int) (models.RunStatus, error) {
			return models.StatusInProgress, nil
		},
	}
	o := New(client, &fakeDocs{}, &fakeJobService{}, newFakeArtifacts(), fastConfig())
	job := newTestJob()

	resp, err := o.Await(context.Background(), job)
	require.NoError(t, err)

	assert.False(t, resp.HasResponse)
	assert.Equal(t, models.StatusInProgress, resp.RunStatus)
	assert.Equal(t, "maximum attempts reached", resp.Error)
}

func TestAwaitCompletionWinsOverExhaustion(t *testing.T) {
	// La réponse de l'assistant arrive pendant la dernière observation:
	// pas d'erreur d'épuisement sur un job qui a abouti.
	client := &fakeClient{
		messages: []assistant.Message{
			{Role: "assistant", Content: "<article>fiche</article>"},
		},
		getRunStatus: func(call int) (models.RunStatus, error) {
			return models.StatusInProgress, nil
		},
	}
	o := New(client, &fakeDocs{}, &fakeJobService{}, newFakeArtifacts(), fastConfig())
	job := newTestJob()

	resp, err := o.Await(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, resp.HasResponse)
	assert.Equal(t, models.StatusCompleted, resp.RunStatus)
	assert.Empty(t, resp.Error)
}

func TestStatusFailedRunCarriesError(t *testing.T) {
	client := &fakeClient{
		messages: []assistant.Message{},
		getRunStatus: func(call int) (models.RunStatus, error) {
			return models.StatusFailed, nil
		},
	}
	o := New(client, &fakeDocs{}, &fakeJobService{}, newFakeArtifacts(), fastConfig())
	job := newTestJob()

	resp, err := o.Status(context.Background(), job)
	require.NoError(t, err)

	assert.False(t, resp.HasResponse)
	assert.Equal(t, models.StatusFailed, resp.RunStatus)
	assert.NotEmpty(t, resp.Error)
}
