package source

import (
	"context"
	"fmt"
	"os"

	"github.com/xela07ax/soc-dashboard/internal/domain"
)

// FileSource читает ресурс из локального файла аудита (audit/*.json пайплайна).
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

func (s *FileSource) Describe() string      { return s.path }
func (s *FileSource) Origin() domain.Origin { return domain.OriginFile }
