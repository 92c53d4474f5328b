package filesystem

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fiche-worker/pkg/storage"
)

type filesystemStorage struct {
	basePath      string
	publicBaseURL string
}

// NewFilesystemStorage crée une nouvelle instance de storage filesystem
func NewFilesystemStorage(cfg *storage.StorageConfig) (storage.Storage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("filesystem base path is required")
	}

	// Créer le répertoire de base s'il n'existe pas
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", cfg.BasePath, err)
	}

	return &filesystemStorage{
		basePath:      cfg.BasePath,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func (fs *filesystemStorage) Upload(ctx context.Context, path string, contentType string, data io.Reader) error {
	fullPath := filepath.Join(fs.basePath, path)

	// Créer les répertoires parents si nécessaire
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories for %s: %w", fullPath, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write data to %s: %w", fullPath, err)
	}

	return nil
}

func (fs *filesystemStorage) Download(ctx context.Context, path string) (io.Reader, error) {
	fullPath := filepath.Join(fs.basePath, path)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", fullPath, err)
	}

	return file, nil
}

func (fs *filesystemStorage) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(fs.basePath, path)

	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence %s: %w", fullPath, err)
	}

	return true, nil
}

func (fs *filesystemStorage) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(fs.basePath, path)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted, no error
		}
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	return nil
}

// PublicURL construit l'URL publique d'un fichier à partir de la base
// configurée. Le backend filesystem suppose qu'un serveur statique
// expose basePath derrière publicBaseURL.
func (fs *filesystemStorage) PublicURL(ctx context.Context, path string) (string, error) {
	if fs.publicBaseURL == "" {
		return "", fmt.Errorf("no public base URL configured for filesystem storage")
	}

	key := strings.TrimPrefix(path, "/")
	escaped := make([]string, 0, 4)
	for _, segment := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(segment))
	}

	return fs.publicBaseURL + "/" + strings.Join(escaped, "/"), nil
}
