package profiles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	configName      = "config"
	configType      = "toml"
	boardsPathKey   = "boards.path"
	boardsFileMode  = 0o600
	boardsDirMode   = 0o700
	boardsConfigDir = ".mu2"
	boardsFile      = "boards.toml"
	tempFilePattern = ".boards-*.toml.tmp"
)

// Source serves board profiles from a TOML file, falling back to the
// built-in profiles when no file exists yet.
type Source struct {
	boardsPath string
	mu         *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.BoardProfileSource = (*Source)(nil)

func NewSource(cfg *viper.Viper) (*Source, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, boardsConfigDir, boardsFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, boardsConfigDir))
	cfg.SetDefault(boardsPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	boardsPath := cfg.GetString(boardsPathKey)
	if boardsPath == "" {
		return nil, errors.New("boards path is empty")
	}
	boardsPath, err = normalizePath(boardsPath)
	if err != nil {
		return nil, err
	}

	return &Source{boardsPath: boardsPath, mu: lockForPath(boardsPath)}, nil
}

func (s *Source) GetByID(ctx context.Context, id string) (domain.BoardProfile, error) {
	if err := ctx.Err(); err != nil {
		return domain.BoardProfile{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.BoardProfile{}, err
	}

	for _, entry := range file.Boards {
		if entry.ID == id {
			return fromSchema(entry), nil
		}
	}

	return domain.BoardProfile{}, domain.ErrBoardNotFound
}

func (s *Source) List(ctx context.Context) ([]domain.BoardProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	boards := make([]domain.BoardProfile, 0, len(file.Boards))
	for _, entry := range file.Boards {
		boards = append(boards, fromSchema(entry))
	}

	return boards, nil
}

func (s *Source) Save(ctx context.Context, profile domain.BoardProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(profile)
	updated := false
	for i := range file.Boards {
		if file.Boards[i].ID == encoded.ID {
			file.Boards[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Boards = append(file.Boards, encoded)
	}

	return s.writeSchema(file)
}

func (s *Source) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(s.boardsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return builtinSchema(), nil
		}
		return fileSchema{}, fmt.Errorf("read boards file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode boards file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Source) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.boardsPath), boardsDirMode); err != nil {
		return fmt.Errorf("create boards directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode boards file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.boardsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp boards file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp boards file: %w", err)
	}

	if err := tempFile.Chmod(boardsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp boards file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp boards file: %w", err)
	}

	if err := os.Rename(tempName, s.boardsPath); err != nil {
		return fmt.Errorf("replace boards file: %w", err)
	}

	cleanup = false
	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve boards path: %w", err)
	}
	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
