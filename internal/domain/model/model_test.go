package model_test

import (
	"testing"

	"github.com/eito54/grosoq/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseMode(t *testing.T) {
	Convey("Given mode strings", t, func() {
		m, err := model.ParseMode("")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, model.ModeRace)

		m, err = model.ParseMode(" Total ")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, model.ModeTotal)

		_, err = model.ParseMode("lap")
		So(err, ShouldNotBeNil)
	})
}

func TestRawPlayerResultTotal(t *testing.T) {
	Convey("Given rows with optional scores", t, func() {
		So(model.RawPlayerResult{}.Total(), ShouldEqual, 0)
		So(model.RawPlayerResult{Score: model.IntPtr(40)}.Total(), ShouldEqual, 40)
		So(model.RawPlayerResult{Score: model.IntPtr(40), TotalScore: model.IntPtr(90)}.Total(), ShouldEqual, 90)
	})
}

func TestLedgerStandings(t *testing.T) {
	Convey("Given an unordered ledger", t, func() {
		l := model.Ledger{
			{Name: "B", Score: 10},
			{Name: "C", Score: 30},
			{Name: "A", Score: 10},
		}

		Convey("When computing standings", func() {
			s := l.Standings()

			Convey("Then entries are ranked by score then name", func() {
				So(len(s), ShouldEqual, 3)
				So(s[0].Name, ShouldEqual, "C")
				So(s[0].Rank, ShouldEqual, 1)
				So(s[1].Name, ShouldEqual, "A")
				So(s[2].Name, ShouldEqual, "B")
				So(s[2].Rank, ShouldEqual, 3)
			})

			Convey("And the ledger order is untouched", func() {
				So(l[0].Name, ShouldEqual, "B")
				So(l.Index("A"), ShouldEqual, 2)
				So(l.Index("Z"), ShouldEqual, -1)
			})
		})
	})
}

func TestPlayerMappingClone(t *testing.T) {
	Convey("Given a mapping", t, func() {
		m := model.PlayerMapping{"Alice": "A"}
		c := m.Clone()
		c["Alice"] = "AL"
		So(m["Alice"], ShouldEqual, "A")
	})
}
