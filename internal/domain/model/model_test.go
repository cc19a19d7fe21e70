package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/tierboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestWeekday(t *testing.T) {
	convey.Convey("Given weekday names", t, func() {
		convey.Convey("When parsing full and short names", func() {
			for i, name := range []string{"Monday", "tue", "WEDNESDAY", "Thu", "friday", "Sat", "sunday"} {
				d, err := model.ParseWeekday(name)
				convey.So(err, convey.ShouldBeNil)
				convey.So(d, convey.ShouldEqual, model.Weekdays[i])
			}
		})

		convey.Convey("When parsing garbage", func() {
			_, err := model.ParseWeekday("Funday")
			convey.So(errors.Is(err, model.ErrInvalidWeekday), convey.ShouldBeTrue)
		})

		convey.Convey("Then Monday comes first", func() {
			convey.So(model.Monday.String(), convey.ShouldEqual, "Monday")
			convey.So(model.Sunday.Short(), convey.ShouldEqual, "Sun")
			convey.So(model.Weekday(9).Valid(), convey.ShouldBeFalse)
		})

		convey.Convey("Then weekdays round-trip through JSON as names", func() {
			b, err := json.Marshal(model.Thursday)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `"Thursday"`)

			var d model.Weekday
			convey.So(json.Unmarshal([]byte(`"Sat"`), &d), convey.ShouldBeNil)
			convey.So(d, convey.ShouldEqual, model.Saturday)
		})
	})

	convey.Convey("Given timestamps", t, func() {
		convey.Convey("Then WeekdayOf maps Sunday to the end of the week", func() {
			sunday := time.Date(2024, time.March, 10, 23, 0, 0, 0, time.UTC)
			convey.So(model.WeekdayOf(sunday), convey.ShouldEqual, model.Sunday)
			convey.So(model.WeekdayOf(sunday.Add(2*time.Hour)), convey.ShouldEqual, model.Monday)
		})
	})
}

func TestChallengeWeek(t *testing.T) {
	convey.Convey("Given a challenge week", t, func() {
		green := true
		w := model.ChallengeWeek{
			Start: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		}

		convey.Convey("Then the green flag starts undecided", func() {
			convey.So(w.Decided(), convey.ShouldBeFalse)
			convey.So(w.IsGreen(), convey.ShouldBeFalse)
			w.Green = &green
			convey.So(w.Decided(), convey.ShouldBeTrue)
			convey.So(w.IsGreen(), convey.ShouldBeTrue)
		})

		convey.Convey("Then DateOf resolves weekdays inside the week", func() {
			ny, _ := time.LoadLocation("America/New_York")
			d := w.DateOf(model.Friday, ny)
			convey.So(d.Format(model.DateLayout), convey.ShouldEqual, "2024-03-08")
			convey.So(d.Location(), convey.ShouldEqual, ny)
		})

		convey.Convey("Then ClockOf keeps the wall clock on a daylight saving change", func() {
			ny, _ := time.LoadLocation("America/New_York")
			sunday := w.ClockOf(model.Sunday, 12, ny)
			convey.So(sunday.Format("2006-01-02 15:04 MST"), convey.ShouldEqual, "2024-03-10 12:00 EDT")
		})

		convey.Convey("Then Contains compares calendar dates", func() {
			convey.So(w.Contains(time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC)), convey.ShouldBeTrue)
			convey.So(w.Contains(time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given check-ins", t, func() {
		a := model.Checkin{Name: "Alice", Time: time.Date(2024, time.March, 4, 6, 0, 0, 0, time.UTC)}
		b := model.Checkin{Name: "Alice", Time: time.Date(2024, time.March, 4, 22, 0, 0, 0, time.UTC)}
		c := model.Checkin{Name: "Bob", Time: a.Time}

		convey.So(a.SameDay(b), convey.ShouldBeTrue)
		convey.So(a.SameDay(c), convey.ShouldBeFalse)
	})

	convey.Convey("Given a challenger with an unknown zone", t, func() {
		convey.So(model.Challenger{TZ: "Mars/Olympus"}.Location(), convey.ShouldEqual, time.UTC)
	})
}
