package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

// BoltFileName is the database file created inside the data directory.
const BoltFileName = "grosoq.db"

var (
	mappingBucket = []byte("mappings")
	stateBucket   = []byte("state")

	selfKey       = []byte("self_player")
	ledgerKey     = []byte("ledger")
	ledgerModeKey = []byte("ledger_mode")
)

// BoltStore keeps the mapping as one key per player and the other records
// as JSON values in a state bucket.
type BoltStore struct {
	db     *bolt.DB
	logger logger.Logger
}

// NewBoltStore opens (or creates) the bolt database inside dir.
func NewBoltStore(dir string, opts ...Option) (*BoltStore, error) {
	o := newOptions(opts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	path := filepath.Join(dir, BoltFileName)
	db, err := bolt.Open(path, o.fileMode, &bolt.Options{Timeout: o.lockTimeout})
	if err != nil {
		if errors.Cause(err) == bolt.ErrTimeout {
			return nil, errors.Wrap(ErrLocked, path)
		}
		return nil, errors.Wrapf(err, "open bolt db %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{mappingBucket, stateBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	o.logger.Debug(context.Background(), "bolt store opened", logger.String("path", path))
	return &BoltStore{db: db, logger: o.logger}, nil
}

func (s *BoltStore) LoadMappings(ctx context.Context) (model.PlayerMapping, error) {
	m := model.PlayerMapping{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(mappingBucket).ForEach(func(k, v []byte) error {
			m[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "load mappings")
	}
	return m, nil
}

// SaveMappings replaces the stored mapping with m.
func (s *BoltStore) SaveMappings(ctx context.Context, m model.PlayerMapping) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(mappingBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(mappingBucket)
		if err != nil {
			return err
		}
		for name, team := range m {
			if name == "" {
				continue
			}
			if err := b.Put([]byte(name), []byte(team)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "save mappings")
}

func (s *BoltStore) LoadSelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	var rec *model.SelfPlayerRecord
	err := s.getJSON(selfKey, func(raw []byte) error {
		rec = &model.SelfPlayerRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load self player")
	}
	return rec, nil
}

func (s *BoltStore) SaveSelfPlayer(ctx context.Context, rec model.SelfPlayerRecord) error {
	return errors.Wrap(s.putJSON(selfKey, rec), "save self player")
}

func (s *BoltStore) ClearSelfPlayer(ctx context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(selfKey)
	})
	return errors.Wrap(err, "clear self player")
}

func (s *BoltStore) LoadLedger(ctx context.Context) (model.Ledger, error) {
	ledger := model.Ledger{}
	err := s.getJSON(ledgerKey, func(raw []byte) error {
		return json.Unmarshal(raw, &ledger)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load ledger")
	}
	return ledger, nil
}

// SaveLedger writes the entries and the mode in one transaction.
func (s *BoltStore) SaveLedger(ctx context.Context, entries model.Ledger, mode model.Mode) error {
	if entries == nil {
		entries = model.Ledger{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode ledger")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if err := b.Put(ledgerKey, raw); err != nil {
			return err
		}
		return b.Put(ledgerModeKey, []byte(mode))
	})
	return errors.Wrap(err, "save ledger")
}

func (s *BoltStore) LedgerMode(ctx context.Context) (model.Mode, error) {
	var mode model.Mode
	err := s.db.View(func(tx *bolt.Tx) error {
		mode = model.Mode(tx.Bucket(stateBucket).Get(ledgerModeKey))
		return nil
	})
	return mode, errors.Wrap(err, "load ledger mode")
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// getJSON calls decode with the raw value of key. Missing keys are not an
// error and decode is not called.
func (s *BoltStore) getJSON(key []byte, decode func([]byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(stateBucket).Get(key)
		if raw == nil {
			return nil
		}
		return decode(raw)
	})
}

func (s *BoltStore) putJSON(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, raw)
	})
}
