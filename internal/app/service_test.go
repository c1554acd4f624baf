package service_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/okian/tally/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a store", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(16), service.WithDedupeSize(8))

		Convey("Then starting and operating fail as not configured", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNotConfigured), ShouldBeTrue)
			_, err := svc.Leaderboard(context.Background(), "e1", "")
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
			So(errors.Is(svc.Ping(context.Background()), service.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("Then stopping an idle service is a no-op", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		Convey("Then stats report the pipeline", func() {
			stats := f.svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 1)
			So(stats["queueSize"], ShouldEqual, 64)
			So(stats, ShouldContainKey, "queueLength")
			So(f.svc.Ping(ctx), ShouldBeNil)
		})

		Convey("When stopped", func() {
			So(f.svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped and restartable", func() {
				So(f.svc.GetStats(ctx)["started"], ShouldEqual, false)
				So(f.svc.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given the service error kinds", t, func() {
		Convey("Then each maps to a stable label", func() {
			So(service.Kind(nil), ShouldEqual, "ok")
			So(service.Kind(service.ErrValidation), ShouldEqual, "validation")
			So(service.Kind(service.NewValidationError("x")), ShouldEqual, "validation")
			So(service.Kind(service.ErrForbidden), ShouldEqual, "forbidden")
			So(service.Kind(service.ErrConsistency), ShouldEqual, "consistency")
			So(service.Kind(service.ErrConflict), ShouldEqual, "conflict")
			So(service.Kind(service.ErrNotFound), ShouldEqual, "not_found")
			So(service.Kind(errors.New("disk on fire")), ShouldEqual, "infrastructure")
		})
	})
}
