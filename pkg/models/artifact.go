package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type pour la compatibilité PostgreSQL (colonnes jsonb)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	if len(bytes) == 0 {
		*j = make(map[string]interface{})
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Matiere est la matière (sujet) à laquelle les fiches sont rattachées
type Matiere struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Nom       string    `json:"nom" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (Matiere) TableName() string {
	return "matieres"
}

// Fiche est l'artefact produit par un job terminé: la fiche de révision.
// Au plus une fiche par job; jamais créée pour un job en échec.
type Fiche struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	JobID         uuid.UUID `json:"job_id" gorm:"type:uuid;not null;uniqueIndex"`
	MatiereID     uuid.UUID `json:"matiere_id" gorm:"type:uuid;not null;index"`
	Nom           string    `json:"nom" gorm:"type:text;not null"`
	Contenu       string    `json:"contenu" gorm:"type:text;not null"`
	Language      string    `json:"language" gorm:"type:varchar(10)"`
	ThreadID      string    `json:"thread_id" gorm:"type:text"`
	VectorStoreID string    `json:"vector_store_id" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Fiche) TableName() string {
	return "fiches"
}

func (f *Fiche) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now()
	return nil
}

// CarteMemo est une carte mémo (flashcard) générée à partir d'une fiche
type CarteMemo struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FicheID   uuid.UUID `json:"fiche_id" gorm:"type:uuid;not null;index"`
	Titre     string    `json:"titre" gorm:"type:text;not null"`
	Contenu   string    `json:"contenu" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (CarteMemo) TableName() string {
	return "cartes_memo"
}

func (c *CarteMemo) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	return nil
}

// QCMQuestion est une question à choix multiples générée à partir d'une fiche
type QCMQuestion struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FicheID   uuid.UUID `json:"fiche_id" gorm:"type:uuid;not null;index"`
	Question  string    `json:"question" gorm:"type:text;not null"`
	Options   JSON      `json:"options" gorm:"type:jsonb;default:'{}'"`
	Reponse   string    `json:"reponse" gorm:"type:varchar(10);not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (QCMQuestion) TableName() string {
	return "qcm"
}

func (q *QCMQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	return nil
}
