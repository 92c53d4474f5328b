package jobs

import (
	"context"

	"fiche-worker/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArtifactRepository persiste les artefacts produits par les jobs
// terminés: fiches, cartes mémo et questions de QCM.
type ArtifactRepository interface {
	GetFicheByJobID(ctx context.Context, jobID uuid.UUID) (*models.Fiche, error)
	CreateFiche(ctx context.Context, fiche *models.Fiche) error
	ReplaceCartes(ctx context.Context, ficheID uuid.UUID, cartes []models.CarteMemo) error
	ReplaceQCM(ctx context.Context, ficheID uuid.UUID, questions []models.QCMQuestion) error
}

type artifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

// GetFicheByJobID retourne gorm.ErrRecordNotFound si aucune fiche
// n'existe pour ce job
func (r *artifactRepository) GetFicheByJobID(ctx context.Context, jobID uuid.UUID) (*models.Fiche, error) {
	var fiche models.Fiche
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&fiche).Error
	if err != nil {
		return nil, err
	}
	return &fiche, nil
}

func (r *artifactRepository) CreateFiche(ctx context.Context, fiche *models.Fiche) error {
	return r.db.WithContext(ctx).Create(fiche).Error
}

// ReplaceCartes remplace le jeu de cartes d'une fiche en une
// transaction: regénérer ne duplique jamais les cartes existantes
func (r *artifactRepository) ReplaceCartes(ctx context.Context, ficheID uuid.UUID, cartes []models.CarteMemo) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fiche_id = ?", ficheID).Delete(&models.CarteMemo{}).Error; err != nil {
			return err
		}
		if len(cartes) == 0 {
			return nil
		}
		for i := range cartes {
			cartes[i].FicheID = ficheID
		}
		return tx.Create(&cartes).Error
	})
}

// ReplaceQCM remplace les questions d'une fiche, mêmes garanties que
// ReplaceCartes
func (r *artifactRepository) ReplaceQCM(ctx context.Context, ficheID uuid.UUID, questions []models.QCMQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fiche_id = ?", ficheID).Delete(&models.QCMQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].FicheID = ficheID
		}
		return tx.Create(&questions).Error
	})
}
