// internal/validation/validation.go - Service de validation des entrées
package validation

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationConfig contient la configuration de validation
type ValidationConfig struct {
	MaxFileSize       int64           // Taille max par fichier (bytes)
	MaxFilenameLength int             // Longueur max du nom de fichier
	AllowedExtensions map[string]bool // Extensions autorisées
	AllowedMimeTypes  map[string]bool // Types MIME autorisés
	AllowedSizes      map[string]bool // Tailles de fiche acceptées
}

// DefaultValidationConfig retourne une configuration par défaut sécurisée.
// Seuls les PDF et images sont acceptés, 10MB max.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxFileSize:       10 * 1024 * 1024,
		MaxFilenameLength: 255,
		AllowedExtensions: map[string]bool{
			".pdf":  true,
			".png":  true,
			".jpg":  true,
			".jpeg": true,
		},
		AllowedMimeTypes: map[string]bool{
			"application/pdf": true,
			"image/png":       true,
			"image/jpeg":      true,
		},
		AllowedSizes: map[string]bool{
			"court": true,
			"moyen": true,
			"long":  true,
		},
	}
}

// ValidationService gère la validation des entrées
type ValidationService struct {
	config *ValidationConfig
}

// NewValidationService crée un nouveau service de validation
func NewValidationService(config *ValidationConfig) *ValidationService {
	if config == nil {
		config = DefaultValidationConfig()
	}

	return &ValidationService{
		config: config,
	}
}

// ValidationError représente une erreur de validation avec détails.
// Jamais retentée: elle signale une entrée invalide, pas une panne.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidationResult contient le résultat de validation
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

// AddError ajoute une erreur de validation
func (vr *ValidationResult) AddError(field, value, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// Merge fusionne un autre résultat dans celui-ci
func (vr *ValidationResult) Merge(other *ValidationResult) {
	if !other.Valid {
		vr.Valid = false
		vr.Errors = append(vr.Errors, other.Errors...)
	}
}

// ValidateJobID valide un ID de job
func (vs *ValidationService) ValidateJobID(jobID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if jobID == "" {
		result.AddError("job_id", "", "job ID is required", "REQUIRED")
		return result
	}

	if _, err := uuid.Parse(jobID); err != nil {
		result.AddError("job_id", jobID, "job ID must be a valid UUID", "INVALID_UUID")
	}

	return result
}

// ValidateMatiereID valide un ID de matière
func (vs *ValidationService) ValidateMatiereID(matiereID string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if matiereID == "" {
		result.AddError("matiere_id", "", "matiere ID is required", "REQUIRED")
		return result
	}

	if _, err := uuid.Parse(matiereID); err != nil {
		result.AddError("matiere_id", matiereID, "matiere ID must be a valid UUID", "INVALID_UUID")
	}

	return result
}

// ValidateGenerationParams valide les paramètres de génération d'une fiche
func (vs *ValidationService) ValidateGenerationParams(language, size, niveauEtude string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if language == "" {
		result.AddError("language", "", "language is required", "REQUIRED")
	}
	if size == "" {
		result.AddError("size", "", "size is required", "REQUIRED")
	} else if !vs.config.AllowedSizes[size] {
		result.AddError("size", size, "size must be one of: court, moyen, long", "INVALID_SIZE")
	}
	if niveauEtude == "" {
		result.AddError("niveau_etude", "", "niveau_etude is required", "REQUIRED")
	}

	return result
}

// ValidateFileHeader valide un header de fichier multipart
func (vs *ValidationService) ValidateFileHeader(header *multipart.FileHeader) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if header == nil {
		result.AddError("file", "", "no file provided", "REQUIRED")
		return result
	}

	filename := header.Filename
	if filename == "" {
		result.AddError("filename", "", "filename is required", "REQUIRED")
		return result
	}

	if len(filename) > vs.config.MaxFilenameLength {
		result.AddError("filename", filename,
			fmt.Sprintf("filename too long (max %d characters)", vs.config.MaxFilenameLength),
			"TOO_LONG")
	}

	if !utf8.ValidString(filename) {
		result.AddError("filename", filename, "filename must be valid UTF-8", "INVALID_ENCODING")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		result.AddError("filename", filename, "filename must have an extension", "NO_EXTENSION")
	} else if !vs.config.AllowedExtensions[ext] {
		result.AddError("filename", filename,
			fmt.Sprintf("file extension %s not allowed", ext),
			"FORBIDDEN_EXTENSION")
	}

	if header.Size > vs.config.MaxFileSize {
		result.AddError("file_size", fmt.Sprintf("%d", header.Size),
			fmt.Sprintf("file too large (max %d bytes)", vs.config.MaxFileSize),
			"FILE_TOO_LARGE")
	}

	if header.Size == 0 {
		result.AddError("file_size", "0", "file is empty", "EMPTY_FILE")
	}

	if len(header.Header["Content-Type"]) > 0 {
		contentType := header.Header["Content-Type"][0]
		mainType := strings.Split(contentType, ";")[0]
		if !vs.config.AllowedMimeTypes[mainType] {
			result.AddError("content_type", contentType,
				fmt.Sprintf("content type %s not allowed", mainType),
				"FORBIDDEN_MIME_TYPE")
		}
	}

	return result
}
