package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus représente le statut d'un run distant de l'assistant
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
	StatusCancelled  RunStatus = "cancelled"
	StatusExpired    RunStatus = "expired"
)

// IsTerminal retourne true si le statut est final
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Rank définit l'ordre monotone des statuts: queued < in_progress < terminal.
// Les quatre statuts terminaux partagent le même rang.
func (s RunStatus) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return 2
	}
	return -1
}

// TerminalStatuses liste les statuts finaux, utilisée par le guard du repository
func TerminalStatuses() []RunStatus {
	return []RunStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusExpired}
}

// AttachmentStatus représente le statut d'indexation d'un fichier dans le vector store
type AttachmentStatus string

const (
	AttachPending    AttachmentStatus = "pending"
	AttachInProgress AttachmentStatus = "in_progress"
	AttachCompleted  AttachmentStatus = "completed"
	AttachFailed     AttachmentStatus = "failed"
)

// AnalysisJob est le modèle principal pour la base de données.
// Une ligne par document soumis; le statut suit le run distant.
type AnalysisJob struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	MatiereID     uuid.UUID `json:"matiere_id" gorm:"type:uuid;not null;index"`
	ThreadID      string    `json:"thread_id" gorm:"type:text;not null;index"`
	RunID         string    `json:"run_id" gorm:"type:text;not null"`
	AssistantID   string    `json:"assistant_id" gorm:"type:text"`
	FileID        string    `json:"file_id" gorm:"type:text"`
	VectorStoreID string    `json:"vector_store_id" gorm:"type:text"`
	StoragePath   string    `json:"storage_path" gorm:"type:text"`
	Status        RunStatus `json:"status" gorm:"type:varchar(20);not null;default:'queued';index"`
	Error         string    `json:"error,omitempty" gorm:"type:text"`
	Language      string    `json:"language" gorm:"type:varchar(10)"`
	Size          string    `json:"size" gorm:"type:varchar(10)"`
	NiveauEtude   string    `json:"niveau_etude" gorm:"type:varchar(50)"`
	FicheName     string    `json:"fiche_name" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName spécifie le nom de la table
func (AnalysisJob) TableName() string {
	return "threads"
}

// BeforeCreate hook GORM pour initialiser l'ID et les timestamps
func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = StatusQueued
	}
	return nil
}

// BeforeUpdate hook GORM pour mettre à jour le timestamp
func (j *AnalysisJob) BeforeUpdate(tx *gorm.DB) error {
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal retourne true si le job est dans un état final
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsActive retourne true si le run distant est encore en cours
func (j *AnalysisJob) IsActive() bool {
	return j.Status == StatusQueued || j.Status == StatusInProgress
}

// SubmitResponse contient les identifiants retournés après soumission
// d'un document: le handle complet du job créé.
type SubmitResponse struct {
	JobID         uuid.UUID `json:"job_id"`
	ThreadID      string    `json:"thread_id"`
	RunID         string    `json:"run_id"`
	FileID        string    `json:"file_id"`
	VectorStoreID string    `json:"vector_store_id"`
	StoragePath   string    `json:"storage_path"`
}

// ThreadMessage est un message du thread distant, tel qu'exposé à l'appelant
type ThreadMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// StatusResponse est la réponse de l'endpoint de statut
type StatusResponse struct {
	Messages    []ThreadMessage `json:"messages"`
	HasResponse bool            `json:"hasResponse"`
	RunStatus   RunStatus       `json:"runStatus"`
	Error       string          `json:"error,omitempty"`
}

// JobResponse représente les détails persistés d'un job
type JobResponse struct {
	ID            uuid.UUID `json:"id"`
	MatiereID     uuid.UUID `json:"matiere_id"`
	ThreadID      string    `json:"thread_id"`
	RunID         string    `json:"run_id"`
	VectorStoreID string    `json:"vector_store_id"`
	StoragePath   string    `json:"storage_path"`
	Status        RunStatus `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToResponse convertit un AnalysisJob en JobResponse
func (j *AnalysisJob) ToResponse() *JobResponse {
	return &JobResponse{
		ID:            j.ID,
		MatiereID:     j.MatiereID,
		ThreadID:      j.ThreadID,
		RunID:         j.RunID,
		VectorStoreID: j.VectorStoreID,
		StoragePath:   j.StoragePath,
		Status:        j.Status,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}
