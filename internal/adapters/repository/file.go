package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

// File names used by FileStore inside its directory.
const (
	MappingFileName    = "player_mapping.json"
	SelfPlayerFileName = "self_player.json"
	LedgerFileName     = "scores.json"
	lockFileName       = ".grosoq.lock"
)

// ledgerFile is the on-disk shape of the score ledger.
type ledgerFile struct {
	Teams     model.Ledger `json:"teams"`
	Mode      model.Mode   `json:"mode,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FileStore keeps each record in its own JSON file. Writes replace the
// whole file through a rename and every operation holds an advisory lock
// so that two processes sharing a directory do not interleave.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	lock        *flock.Flock
	lockTimeout time.Duration
	fileMode    os.FileMode
	logger      logger.Logger
}

// NewFileStore creates a JSON file store rooted at dir.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	o := newOptions(opts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &FileStore{
		dir:         dir,
		lock:        flock.New(filepath.Join(dir, lockFileName)),
		lockTimeout: o.lockTimeout,
		fileMode:    o.fileMode,
		logger:      o.logger,
	}, nil
}

func (s *FileStore) LoadMappings(ctx context.Context) (model.PlayerMapping, error) {
	m := model.PlayerMapping{}
	if err := s.read(ctx, MappingFileName, &m); err != nil {
		return nil, errors.Wrap(err, "load mappings")
	}
	if m == nil {
		m = model.PlayerMapping{}
	}
	return m, nil
}

func (s *FileStore) SaveMappings(ctx context.Context, m model.PlayerMapping) error {
	if m == nil {
		m = model.PlayerMapping{}
	}
	return errors.Wrap(s.write(ctx, MappingFileName, m), "save mappings")
}

func (s *FileStore) LoadSelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	var rec *model.SelfPlayerRecord
	if err := s.read(ctx, SelfPlayerFileName, &rec); err != nil {
		return nil, errors.Wrap(err, "load self player")
	}
	return rec, nil
}

func (s *FileStore) SaveSelfPlayer(ctx context.Context, rec model.SelfPlayerRecord) error {
	return errors.Wrap(s.write(ctx, SelfPlayerFileName, rec), "save self player")
}

func (s *FileStore) ClearSelfPlayer(ctx context.Context) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "clear self player")
	}
	defer unlock()
	err = os.Remove(filepath.Join(s.dir, SelfPlayerFileName))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "clear self player")
	}
	return nil
}

func (s *FileStore) LoadLedger(ctx context.Context) (model.Ledger, error) {
	var f ledgerFile
	if err := s.read(ctx, LedgerFileName, &f); err != nil {
		return nil, errors.Wrap(err, "load ledger")
	}
	if f.Teams == nil {
		f.Teams = model.Ledger{}
	}
	return f.Teams, nil
}

func (s *FileStore) SaveLedger(ctx context.Context, entries model.Ledger, mode model.Mode) error {
	if entries == nil {
		entries = model.Ledger{}
	}
	f := ledgerFile{Teams: entries, Mode: mode, UpdatedAt: time.Now().UTC()}
	return errors.Wrap(s.write(ctx, LedgerFileName, f), "save ledger")
}

func (s *FileStore) LedgerMode(ctx context.Context) (model.Mode, error) {
	var f ledgerFile
	if err := s.read(ctx, LedgerFileName, &f); err != nil {
		return "", errors.Wrap(err, "load ledger mode")
	}
	return f.Mode, nil
}

// Close releases the lock file handle.
func (s *FileStore) Close() error {
	return s.lock.Close()
}

// acquire takes the in-process mutex and the directory lock, waiting at
// most lockTimeout for the latter.
func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := s.lock.TryLockContext(ctx, defaultLockRetry)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "acquire lock")
	}
	if !ok {
		s.mu.Unlock()
		return nil, ErrLocked
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn(context.Background(), "failed to release store lock", logger.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

// read decodes name into v. A missing file leaves v untouched.
func (s *FileStore) read(ctx context.Context, name string, v interface{}) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, v), "decode %s", name)
}

// write encodes v into a temp file and renames it over name.
func (s *FileStore) write(ctx context.Context, name string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(s.dir, name))
}
