package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/tierboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d, err := dedupe.NewInMemoryDeduper()
		So(err, ShouldBeNil)

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "alice@1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports it as seen", func() {
				So(d.SeenAndRecord(ctx, "alice@1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And unrecording it allows a retry", func() {
				d.Unrecord(ctx, "alice@1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "alice@1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "nobody")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d, err := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		So(err, ShouldBeNil)

		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")
		d.SeenAndRecord(ctx, "c")

		Convey("Then the oldest key is evicted", func() {
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})
	})

	Convey("Given concurrent submissions of the same key", t, func() {
		d, err := dedupe.NewInMemoryDeduper()
		So(err, ShouldBeNil)

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "same") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(fresh, ShouldEqual, 1)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given the same instant in two zones", t, func() {
		ny, err := time.LoadLocation("America/New_York")
		So(err, ShouldBeNil)
		at := time.Date(2024, time.March, 4, 7, 0, 0, 0, ny)

		Convey("Then both produce the same key", func() {
			So(dedupe.Key("Alice", at), ShouldEqual, dedupe.Key("Alice", at.UTC()))
			So(dedupe.Key("Alice", at), ShouldEqual, fmt.Sprintf("Alice@%s", "2024-03-04T12:00:00Z"))
		})

		Convey("Then different names differ", func() {
			So(dedupe.Key("Alice", at), ShouldNotEqual, dedupe.Key("Bob", at))
		})
	})
}
