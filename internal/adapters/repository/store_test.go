package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eito54/grosoq/internal/adapters/repository"
	"github.com/eito54/grosoq/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func backends(t *testing.T) map[string]func() repository.Store {
	return map[string]func() repository.Store{
		repository.BackendMemory: func() repository.Store {
			return repository.NewMemoryStore()
		},
		repository.BackendBolt: func() repository.Store {
			s, err := repository.NewBoltStore(t.TempDir())
			if err != nil {
				t.Fatalf("open bolt store: %v", err)
			}
			return s
		},
		repository.BackendJSON: func() repository.Store {
			s, err := repository.NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("open file store: %v", err)
			}
			return s
		},
	}
}

func TestStoreBackends(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends(t) {
		Convey("Given a fresh "+name+" store", t, func() {
			store := open()
			Reset(func() { _ = store.Close() })

			Convey("Then every record starts empty", func() {
				m, err := store.LoadMappings(ctx)
				So(err, ShouldBeNil)
				So(m, ShouldBeEmpty)

				rec, err := store.LoadSelfPlayer(ctx)
				So(err, ShouldBeNil)
				So(rec, ShouldBeNil)

				ledger, err := store.LoadLedger(ctx)
				So(err, ShouldBeNil)
				So(ledger, ShouldBeEmpty)

				mode, err := store.LedgerMode(ctx)
				So(err, ShouldBeNil)
				So(mode, ShouldEqual, model.Mode(""))
			})

			Convey("When the mapping is saved twice", func() {
				So(store.SaveMappings(ctx, model.PlayerMapping{"AKSKDfoo": "AKSKD", "Bob": "B"}), ShouldBeNil)
				So(store.SaveMappings(ctx, model.PlayerMapping{"AKSKDfoo": "AKSKD"}), ShouldBeNil)

				Convey("Then the second save replaces the first", func() {
					m, err := store.LoadMappings(ctx)
					So(err, ShouldBeNil)
					So(m, ShouldResemble, model.PlayerMapping{"AKSKDfoo": "AKSKD"})
				})
			})

			Convey("When a self player is saved and cleared", func() {
				at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
				So(store.SaveSelfPlayer(ctx, model.SelfPlayerRecord{Name: "Dave", Timestamp: at}), ShouldBeNil)

				rec, err := store.LoadSelfPlayer(ctx)
				So(err, ShouldBeNil)
				So(rec.Name, ShouldEqual, "Dave")
				So(rec.Timestamp.Equal(at), ShouldBeTrue)

				So(store.ClearSelfPlayer(ctx), ShouldBeNil)
				rec, err = store.LoadSelfPlayer(ctx)
				So(err, ShouldBeNil)
				So(rec, ShouldBeNil)

				So(store.ClearSelfPlayer(ctx), ShouldBeNil)
			})

			Convey("When the ledger is saved", func() {
				entries := model.Ledger{
					{Name: "RED", Score: 27, AddedScore: 27, IsCurrentPlayer: true},
					{Name: "BLUE", Score: 10},
				}
				So(store.SaveLedger(ctx, entries, model.ModeTotal), ShouldBeNil)

				Convey("Then entries keep their order and the mode is recorded", func() {
					ledger, err := store.LoadLedger(ctx)
					So(err, ShouldBeNil)
					So(ledger, ShouldResemble, entries)

					mode, err := store.LedgerMode(ctx)
					So(err, ShouldBeNil)
					So(mode, ShouldEqual, model.ModeTotal)
				})

				Convey("Then saving nil empties it", func() {
					So(store.SaveLedger(ctx, nil, model.ModeManual), ShouldBeNil)
					ledger, err := store.LoadLedger(ctx)
					So(err, ShouldBeNil)
					So(ledger, ShouldBeEmpty)
				})
			})
		})
	}
}

func TestFileStoreCorruption(t *testing.T) {
	Convey("Given a file store with a corrupt mapping file", t, func() {
		dir := t.TempDir()
		store, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, repository.MappingFileName), []byte("{not json"), 0o600), ShouldBeNil)

		Convey("Then loading reports the error", func() {
			_, err := store.LoadMappings(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("Then a save repairs the file", func() {
			So(store.SaveMappings(context.Background(), model.PlayerMapping{"a": "A"}), ShouldBeNil)
			m, err := store.LoadMappings(context.Background())
			So(err, ShouldBeNil)
			So(m["a"], ShouldEqual, "A")
		})
	})
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	Convey("Given a ledger written by one file store", t, func() {
		dir := t.TempDir()
		first, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)
		So(first.SaveLedger(context.Background(), model.Ledger{{Name: "RED", Score: 5}}, model.ModeRace), ShouldBeNil)
		So(first.Close(), ShouldBeNil)

		Convey("Then a second instance reads it back", func() {
			second, err := repository.NewFileStore(dir)
			So(err, ShouldBeNil)
			ledger, err := second.LoadLedger(context.Background())
			So(err, ShouldBeNil)
			So(ledger[0].Score, ShouldEqual, 5)
		})
	})
}

func TestBoltStoreLocked(t *testing.T) {
	Convey("Given a bolt database held open", t, func() {
		dir := t.TempDir()
		first, err := repository.NewBoltStore(dir)
		So(err, ShouldBeNil)
		Reset(func() { _ = first.Close() })

		Convey("Then a second open times out as locked", func() {
			_, err := repository.NewBoltStore(dir, repository.WithLockTimeout(50*time.Millisecond))
			So(errors.Is(err, repository.ErrLocked), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given backend names", t, func() {
		s, err := repository.Open("memory", "")
		So(err, ShouldBeNil)
		So(s, ShouldHaveSameTypeAs, &repository.MemoryStore{})

		s, err = repository.Open("JSON", t.TempDir())
		So(err, ShouldBeNil)
		So(s, ShouldHaveSameTypeAs, &repository.FileStore{})

		_, err = repository.Open("redis", t.TempDir())
		So(errors.Is(err, repository.ErrUnknownBackend), ShouldBeTrue)
	})

	Convey("Given a closed memory store", t, func() {
		s := repository.NewMemoryStore()
		So(s.Close(), ShouldBeNil)
		_, err := s.LoadLedger(context.Background())
		So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
	})
}
