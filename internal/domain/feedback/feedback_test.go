package feedback_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/tiergate/internal/domain/feedback"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSeverityOrder(t *testing.T) {
	Convey("Given the three severities", t, func() {
		Convey("Then they are totally ordered", func() {
			So(feedback.Success, ShouldBeLessThan, feedback.Warning)
			So(feedback.Warning, ShouldBeLessThan, feedback.Error)
			So(feedback.Max(feedback.Error, feedback.Success), ShouldEqual, feedback.Error)
			So(feedback.Max(feedback.Success, feedback.Warning), ShouldEqual, feedback.Warning)
		})

		Convey("Then names round-trip through ParseSeverity", func() {
			for _, s := range []feedback.Severity{feedback.Success, feedback.Warning, feedback.Error} {
				parsed, err := feedback.ParseSeverity(s.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, s)
			}
			_, err := feedback.ParseSeverity("fatal")
			So(errors.Is(err, feedback.ErrUnknownSeverity), ShouldBeTrue)
		})
	})
}

func TestGroupSeverity(t *testing.T) {
	Convey("Given an empty group", t, func() {
		g := feedback.NewGroup("Checking performance")

		Convey("Then it reports success", func() {
			So(g.Severity(), ShouldEqual, feedback.Success)
			So(g.Len(), ShouldEqual, 0)
		})

		Convey("When entries of mixed severity are added", func() {
			g.Add(feedback.Successf("ok"))
			So(g.Severity(), ShouldEqual, feedback.Success)
			g.Add(feedback.Warningf("many healers (%d)", 3))
			So(g.Severity(), ShouldEqual, feedback.Warning)
			g.Add(feedback.Errorf("boss was not killed"))
			g.Add(feedback.Successf("later"))

			Convey("Then the severity is the maximum and never goes down", func() {
				So(g.Severity(), ShouldEqual, feedback.Error)
			})

			Convey("Then insertion order is preserved", func() {
				items := g.Items()
				So(len(items), ShouldEqual, 4)
				So(items[0].Message(), ShouldEqual, "ok")
				So(items[1].Message(), ShouldEqual, "many healers (3)")
				So(items[2].Message(), ShouldEqual, "boss was not killed")
				So(items[3].Message(), ShouldEqual, "later")
			})
		})

		Convey("When two groups are created", func() {
			a := feedback.NewGroup("Killproof")
			b := feedback.NewGroup("Killproof")
			a.Add(feedback.Errorf("not enough"))

			Convey("Then they never share entries", func() {
				So(a.Len(), ShouldEqual, 1)
				So(b.Len(), ShouldEqual, 0)
				So(b.Severity(), ShouldEqual, feedback.Success)
			})
		})
	})
}

func TestCollectionSeverity(t *testing.T) {
	Convey("Given an empty collection", t, func() {
		c := feedback.NewCollection()

		Convey("Then it passes with success", func() {
			So(c.Severity(), ShouldEqual, feedback.Success)
			So(c.Passed(), ShouldBeTrue)
		})

		Convey("When a warning group and a success group are added", func() {
			w := feedback.NewGroup("performance")
			w.Add(feedback.Warningf("three healers"))
			c.AddGroup(feedback.NewGroup("valid"))
			c.AddGroup(w)

			Convey("Then the collection warns but still passes", func() {
				So(c.Severity(), ShouldEqual, feedback.Warning)
				So(c.Passed(), ShouldBeTrue)
			})

			Convey("And an error added to a held group fails it", func() {
				w.Add(feedback.Errorf("died"))
				So(c.Severity(), ShouldEqual, feedback.Error)
				So(c.Passed(), ShouldBeFalse)
			})
		})
	})
}

func TestCollectionJSON(t *testing.T) {
	Convey("Given a collection with two groups", t, func() {
		c := feedback.NewCollection()
		g1 := feedback.NewGroup("Checking if log is valid")
		g1.Add(feedback.Successf("fine"))
		g2 := feedback.NewGroup("Checking performance")
		g2.Add(feedback.Errorf("You've died"))
		c.AddGroup(g1)
		c.AddGroup(g2)

		Convey("When it is stored as JSON and read back", func() {
			raw, err := json.Marshal(c)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"severity":"error"`)

			var back feedback.Collection
			So(json.Unmarshal(raw, &back), ShouldBeNil)

			Convey("Then groups, order and derived severities survive", func() {
				groups := back.Groups()
				So(len(groups), ShouldEqual, 2)
				So(groups[0].Title(), ShouldEqual, "Checking if log is valid")
				So(groups[1].Severity(), ShouldEqual, feedback.Error)
				So(back.Severity(), ShouldEqual, feedback.Error)
			})
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Given a failing collection", t, func() {
		c := feedback.NewCollection()
		g := feedback.NewGroup("Killproof")
		g.Add(feedback.Errorf("You have killed 4/27 different bosses (5 required)"))
		c.AddGroup(g)

		Convey("Then the text output tags the group and its entries", func() {
			out := feedback.Render(c)
			So(out, ShouldStartWith, ":x: Killproof:\n")
			So(out, ShouldContainSubstring, "  :x: You have killed 4/27")
		})
	})
}
