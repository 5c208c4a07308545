package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	mapping   model.PlayerMapping
	self      *model.SelfPlayerRecord
	saves     int
	loadErr   error
	saveErr   error
	selfSaves int
}

func (f *fakeStore) LoadMappings(ctx context.Context) (model.PlayerMapping, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.mapping.Clone(), nil
}

func (f *fakeStore) SaveMappings(ctx context.Context, m model.PlayerMapping) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.mapping = m.Clone()
	return nil
}

func (f *fakeStore) LoadSelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.self, nil
}

func (f *fakeStore) SaveSelfPlayer(ctx context.Context, rec model.SelfPlayerRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.selfSaves++
	f.self = &rec
	return nil
}

func newResolver(store *fakeStore) *identity.Resolver {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return identity.NewResolver(store, store, identity.WithClock(func() time.Time { return fixed }))
}

func TestNormalize(t *testing.T) {
	Convey("Given raw OCR names", t, func() {
		So(identity.Normalize("  Alice  "), ShouldEqual, "Alice")
		So(identity.Normalize(" AKSKDfoo\u200B"), ShouldEqual, "AKSKDfoo")
		So(identity.Normalize("\uFEFFBob\u200D"), ShouldEqual, "Bob")
		So(identity.Normalize("Ca\u0007rl\u0085"), ShouldEqual, "Carl")
		So(identity.Normalize("Da\u200Cve"), ShouldEqual, "Dave")
		So(identity.Normalize("\u200B \t"), ShouldEqual, "")
		So(identity.Normalize("ｶﾞｰﾄﾞ"), ShouldEqual, "ｶﾞｰﾄﾞ")
	})
}

func TestLongestCommonPrefix(t *testing.T) {
	Convey("Given sets of names", t, func() {
		So(identity.LongestCommonPrefix([]string{"AKSKDfoo", "AKSKDbar"}), ShouldEqual, "AKSKD")
		So(identity.LongestCommonPrefix([]string{"ABC123", "ABD456"}), ShouldEqual, "AB")
		So(identity.LongestCommonPrefix([]string{"solo"}), ShouldEqual, "solo")
		So(identity.LongestCommonPrefix(nil), ShouldEqual, "")
		So(identity.LongestCommonPrefix([]string{"abc", "ABC"}), ShouldEqual, "")
		So(identity.LongestCommonPrefix([]string{"AB", "ABC", "ABCD"}), ShouldEqual, "AB")
		So(identity.LongestCommonPrefix([]string{"チームA", "チームB"}), ShouldEqual, "チーム")
		So(identity.LongestCommonPrefix([]string{"", "A"}), ShouldEqual, "")
	})

	Convey("Given names with invalid UTF-8 bytes", t, func() {
		So(identity.LongestCommonPrefix([]string{"\xffab", "\xfeab"}), ShouldEqual, "")
		So(identity.LongestCommonPrefix([]string{"A\xffb", "A\xffc"}), ShouldEqual, "A\xff")
		So(identity.LongestCommonPrefix([]string{"A\xffb", "A\xfeb"}), ShouldEqual, "A")
	})
}

func TestCanonical(t *testing.T) {
	Convey("Given manually typed team names", t, func() {
		So(identity.Canonical(" akskd\u200B"), ShouldEqual, "AKSKD")
		So(identity.Canonical("Red"), ShouldEqual, "RED")
		So(identity.Canonical("\u200B "), ShouldEqual, "")
	})
}

func TestUpdateMapping(t *testing.T) {
	Convey("Given an existing single-letter mapping", t, func() {
		mapping := model.PlayerMapping{"Alice": "A"}

		Convey("When the batch only shares a one-letter prefix", func() {
			changed := identity.UpdateMapping(mapping, []string{"Alice", "Amy"})

			Convey("Then Alice keeps A and Amy joins it", func() {
				So(changed, ShouldBeTrue)
				So(mapping["Alice"], ShouldEqual, "A")
				So(mapping["Amy"], ShouldEqual, "A")
			})
		})

		Convey("When longer names still share only one letter", func() {
			identity.UpdateMapping(mapping, []string{"Alicexx", "Amyxx"})

			Convey("Then nothing is downgraded or upgraded", func() {
				So(mapping["Alice"], ShouldEqual, "A")
				So(mapping["Alicexx"], ShouldEqual, "A")
				So(mapping["Amyxx"], ShouldEqual, "A")
			})
		})

		Convey("When the group yields a two-letter prefix", func() {
			changed := identity.UpdateMapping(mapping, []string{"Alan"})

			Convey("Then the placeholder upgrades", func() {
				So(changed, ShouldBeTrue)
				So(mapping["Alice"], ShouldEqual, "AL")
				So(mapping["Alan"], ShouldEqual, "AL")
			})
		})
	})

	Convey("Given an established team name", t, func() {
		mapping := model.PlayerMapping{"Bob": "BRAVO"}

		Convey("When a new member with the same initial appears", func() {
			changed := identity.UpdateMapping(mapping, []string{"Bobby"})

			Convey("Then the established name sticks for everyone", func() {
				So(changed, ShouldBeTrue)
				So(mapping["Bob"], ShouldEqual, "BRAVO")
				So(mapping["Bobby"], ShouldEqual, "BRAVO")
			})
		})

		Convey("When the same batch is applied twice", func() {
			identity.UpdateMapping(mapping, []string{"Bobby"})
			changed := identity.UpdateMapping(mapping, []string{"Bobby", "Bob"})

			Convey("Then the second pass changes nothing", func() {
				So(changed, ShouldBeFalse)
			})
		})
	})

	Convey("Given an empty mapping", t, func() {
		mapping := model.PlayerMapping{}

		Convey("When a lone player arrives", func() {
			identity.UpdateMapping(mapping, []string{"zeta"})

			Convey("Then the team is the upper-cased initial", func() {
				So(mapping["zeta"], ShouldEqual, "Z")
			})
		})

		Convey("When teammates share a lower-case prefix", func() {
			identity.UpdateMapping(mapping, []string{"xyfoo", "xybar", "  ", "\u200B"})

			Convey("Then the prefix is upper-cased and blanks are ignored", func() {
				So(mapping["xyfoo"], ShouldEqual, "XY")
				So(mapping["xybar"], ShouldEqual, "XY")
				So(len(mapping), ShouldEqual, 2)
			})
		})

		Convey("When two teams have different initials", func() {
			identity.UpdateMapping(mapping, []string{"REDa", "REDb", "BLUx", "BLUy"})

			Convey("Then each group resolves independently", func() {
				So(mapping["REDa"], ShouldEqual, "RED")
				So(mapping["BLUy"], ShouldEqual, "BLU")
			})
		})

		Convey("When the shared prefix ends in a space", func() {
			identity.UpdateMapping(mapping, []string{"KT foo", "KT bar"})

			Convey("Then the trailing space is dropped", func() {
				So(mapping["KT foo"], ShouldEqual, "KT")
			})
		})
	})
}

func TestResolverSelfPlayer(t *testing.T) {
	Convey("Given a resolver with empty stores", t, func() {
		store := &fakeStore{}
		r := newResolver(store)
		ctx := context.Background()

		Convey("When a batch highlights Dave", func() {
			batch := []model.RawPlayerResult{
				{Name: "Erin"},
				{Name: " Dave ", IsCurrentPlayer: true},
			}
			r.TrackSelf(ctx, batch)

			Convey("Then the normalized name is recorded", func() {
				So(store.self, ShouldNotBeNil)
				So(store.self.Name, ShouldEqual, "Dave")
				So(store.self.Timestamp.Year(), ShouldEqual, 2026)
			})

			Convey("And a later unflagged batch re-flags Dave", func() {
				next := []model.RawPlayerResult{{Name: "Erin"}, {Name: "Dave"}}
				r.TrackSelf(ctx, next)
				So(next[0].IsCurrentPlayer, ShouldBeFalse)
				So(next[1].IsCurrentPlayer, ShouldBeTrue)
			})

			Convey("And a batch with only a near match stays unflagged", func() {
				next := []model.RawPlayerResult{{Name: "Dave2"}}
				r.TrackSelf(ctx, next)
				So(next[0].IsCurrentPlayer, ShouldBeFalse)
			})
		})

		Convey("When the record is overwritten by a new highlight", func() {
			r.TrackSelf(ctx, []model.RawPlayerResult{{Name: "Dave", IsCurrentPlayer: true}})
			r.TrackSelf(ctx, []model.RawPlayerResult{{Name: "Fay", IsCurrentPlayer: true}})
			So(store.self.Name, ShouldEqual, "Fay")
			So(store.selfSaves, ShouldEqual, 2)
		})
	})

	Convey("Given an unreadable self store", t, func() {
		store := &fakeStore{loadErr: errors.New("corrupt")}
		r := newResolver(store)
		batch := []model.RawPlayerResult{{Name: "Dave"}}

		So(func() { r.TrackSelf(context.Background(), batch) }, ShouldNotPanic)
		So(batch[0].IsCurrentPlayer, ShouldBeFalse)
	})
}

func TestResolverResolve(t *testing.T) {
	Convey("Given the end-to-end batch", t, func() {
		store := &fakeStore{}
		r := newResolver(store)
		batch := []model.RawPlayerResult{
			{Rank: model.IntPtr(1), Name: " AKSKDfoo\u200B", Team: "AK", IsCurrentPlayer: true},
			{Rank: model.IntPtr(2), Name: "AKSKDbar"},
			{Rank: model.IntPtr(3), Name: "\u200B"},
		}

		Convey("When resolving", func() {
			out, mapping := r.Resolve(context.Background(), batch)

			Convey("Then both players map to AKSKD", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].Name, ShouldEqual, "AKSKDfoo")
				So(out[0].Team, ShouldEqual, "AKSKD")
				So(out[1].Team, ShouldEqual, "AKSKD")
				So(mapping["AKSKDbar"], ShouldEqual, "AKSKD")
			})

			Convey("And the mapping and self record are persisted once", func() {
				So(store.saves, ShouldEqual, 1)
				So(store.mapping["AKSKDfoo"], ShouldEqual, "AKSKD")
				So(store.self.Name, ShouldEqual, "AKSKDfoo")
			})

			Convey("And an identical second pass does not write", func() {
				r.Resolve(context.Background(), []model.RawPlayerResult{{Name: "AKSKDbar"}})
				So(store.saves, ShouldEqual, 1)
			})
		})
	})

	Convey("Given stores that fail", t, func() {
		store := &fakeStore{loadErr: errors.New("missing"), saveErr: errors.New("read-only")}
		r := newResolver(store)

		Convey("When resolving", func() {
			out, mapping := r.Resolve(context.Background(), []model.RawPlayerResult{
				{Name: "REDa"}, {Name: "REDb"},
			})

			Convey("Then the in-memory result is still returned", func() {
				So(out[0].Team, ShouldEqual, "RED")
				So(mapping["REDb"], ShouldEqual, "RED")
			})
		})
	})
}

func TestApplyTeams(t *testing.T) {
	Convey("Given a mapping and rows with model guesses", t, func() {
		rows := []model.RawPlayerResult{{Name: "Bob", Team: "B?"}, {Name: "Zed", Team: "ZZ"}}
		identity.ApplyTeams(rows, model.PlayerMapping{"Bob": "BRAVO"})

		So(rows[0].Team, ShouldEqual, "BRAVO")
		So(rows[1].Team, ShouldEqual, "ZZ")
	})
}
