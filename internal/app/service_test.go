package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tiergate/internal/adapters/repository"
	service "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/domain/account"
	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/mechanics"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := newService(newFakeSource())

		Convey("When it is not started", func() {
			_, err := svc.Submit(ctx, request("https://dps.report/a"))

			Convey("Then submissions are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When it is started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx)["started"], ShouldEqual, true)
			So(svc.Ready(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped and a second stop is a no-op", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src := newFakeSource()
		svc := newService(src)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("When a request misses fields", func() {
			req := request("")
			req.AccountName = " "
			_, err := svc.Submit(ctx, req)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "account_name, log_url")
			})
		})

		Convey("When a request names an unknown tier", func() {
			req := request("https://dps.report/a")
			req.Tier = 4
			_, err := svc.Submit(ctx, req)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
			})
		})

		Convey("When a clean log is submitted", func() {
			src.put("https://dps.report/clean", cleanRecord(valeGuardian))
			sub, err := svc.Submit(ctx, request("https://dps.report/clean"))
			So(err, ShouldBeNil)
			So(sub.Status, ShouldEqual, model.StatusPending)

			got := waitProcessed(ctx, svc, sub.ID)

			Convey("Then it keeps pending with a passing verdict and an assigned pool", func() {
				So(got.Verdict, ShouldNotBeNil)
				So(got.Verdict.Passed(), ShouldBeTrue)
				So(got.Status, ShouldEqual, model.StatusPending)
				So(got.Pool, ShouldEqual, model.Pool1)
				So(got.EncounterID, ShouldEqual, valeGuardian)
			})
		})

		Convey("When a log fails a mechanic", func() {
			src.put("https://dps.report/tp", teleportedRecord())
			sub, err := svc.Submit(ctx, request("https://dps.report/tp"))
			So(err, ShouldBeNil)

			got := waitProcessed(ctx, svc, sub.ID)

			Convey("Then it is denied with the first error", func() {
				So(got.Status, ShouldEqual, model.StatusDenied)
				So(got.Message, ShouldEqual, "You failed Boss TP 1 time(s) (max 0)")
				So(got.Verdict.Severity(), ShouldEqual, feedback.Error)
			})
		})

		Convey("When the log cannot be fetched", func() {
			sub, err := svc.Submit(ctx, request("https://dps.report/missing"))
			So(err, ShouldBeNil)

			got := waitProcessed(ctx, svc, sub.ID)

			Convey("Then the submission is marked as errored without a verdict", func() {
				So(got.Status, ShouldEqual, model.StatusError)
				So(got.Message, ShouldContainSubstring, "fetch")
				So(got.Verdict, ShouldBeNil)
			})
		})
	})
}

func TestService_InFlight(t *testing.T) {
	Convey("Given a service whose log source blocks", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src := newFakeSource()
		src.block()
		src.put("https://dps.report/slow", cleanRecord(valeGuardian))
		svc := newService(src)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() {
			src.release()
			_ = svc.Stop(context.Background())
		})

		first, err := svc.Submit(ctx, request("https://dps.report/slow"))
		So(err, ShouldBeNil)
		<-src.entered

		Convey("When the same log is submitted again with a trailing slash", func() {
			_, err := svc.Submit(ctx, request(" https://dps.report/slow/"))

			Convey("Then it is refused while the first is processed", func() {
				So(errors.Is(err, service.ErrInFlight), ShouldBeTrue)
				So(svc.GetStats(ctx)["inFlight"], ShouldEqual, int64(1))
			})

			Convey("Then the guard clears once the first finishes", func() {
				src.release()
				waitProcessed(ctx, svc, first.ID)
				var again error = service.ErrInFlight
				for i := 0; i < 50 && errors.Is(again, service.ErrInFlight); i++ {
					_, again = svc.Submit(ctx, request("https://dps.report/slow"))
					time.Sleep(10 * time.Millisecond)
				}
				So(again, ShouldBeNil)
			})
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a single worker with a one-slot queue and a blocked log source", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src := newFakeSource()
		src.block()
		store := repository.NewMemoryStore()
		svc := newService(src, service.WithWorkerCount(1), service.WithQueueSize(1), service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() {
			src.release()
			_ = svc.Stop(context.Background())
		})

		Convey("When more logs arrive than the queue holds", func() {
			var rejected error
			for i := 0; i < 10 && rejected == nil; i++ {
				_, rejected = svc.Submit(ctx, request(fmt.Sprintf("https://dps.report/log-%d", i)))
			}

			Convey("Then the caller is told to back off and the rejected submission is errored", func() {
				So(errors.Is(rejected, service.ErrBackpressure), ShouldBeTrue)
				counts, err := store.CountByStatus(ctx)
				So(err, ShouldBeNil)
				So(counts[model.StatusError], ShouldEqual, 1)
			})
		})
	})
}

func TestService_Review(t *testing.T) {
	Convey("Given a processed submission", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src := newFakeSource()
		src.put("https://dps.report/tp", teleportedRecord())
		svc := newService(src)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		sub, err := svc.Submit(ctx, request("https://dps.report/tp"))
		So(err, ShouldBeNil)
		sub = waitProcessed(ctx, svc, sub.ID)
		So(sub.Status, ShouldEqual, model.StatusDenied)

		Convey("When a reviewer accepts it", func() {
			So(svc.SetStatus(ctx, sub.ID, "accepted"), ShouldBeNil)

			Convey("Then the status changes", func() {
				got, err := svc.Get(ctx, sub.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusAccepted)
			})
		})

		Convey("When a reviewer sets a reserved or unknown status", func() {
			Convey("Then it is refused", func() {
				So(errors.Is(svc.SetStatus(ctx, sub.ID, "error"), service.ErrInvalidStatus), ShouldBeTrue)
				So(errors.Is(svc.SetStatus(ctx, sub.ID, "maybe"), service.ErrInvalidStatus), ShouldBeTrue)
			})
		})

		Convey("When the submission does not exist", func() {
			Convey("Then the store error is returned", func() {
				So(errors.Is(svc.SetStatus(ctx, "nope", "closed"), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When it is revalidated in debug mode", func() {
			c, err := svc.Revalidate(ctx, sub.ID, true, "")

			Convey("Then the verdict is returned and the status is untouched", func() {
				So(err, ShouldBeNil)
				groups := c.Groups()
				So(groups[len(groups)-1].Title(), ShouldEqual, mechanics.Title)
				got, _ := svc.Get(ctx, sub.ID)
				So(got.Status, ShouldEqual, model.StatusDenied)
			})
		})

		Convey("When the history is read", func() {
			subs, err := svc.History(ctx, "42")

			Convey("Then it contains the submission", func() {
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 1)
				So(subs[0].ID, ShouldEqual, sub.ID)
			})
		})
	})
}

func TestService_AccountChecks(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := newService(newFakeSource())
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("When a killproof list is checked", func() {
			g, err := svc.Killproof([]string{"Vale Guardian"}, 1)

			Convey("Then the rule-pack boss count is used", func() {
				So(err, ShouldBeNil)
				So(g.Items()[0].Message(), ShouldEqual, "You have killed 1/4 different bosses (5 required)")
			})
		})

		Convey("When the list names bosses outside the boss table", func() {
			g, err := svc.Killproof([]string{" vale guardian", "Made Up", "Another One", "Fake Three", "Fake Four"}, 1)

			Convey("Then only the known boss is counted", func() {
				So(err, ShouldBeNil)
				So(g.Severity(), ShouldEqual, feedback.Error)
				So(g.Items()[0].Message(), ShouldEqual, "You have killed 1/4 different bosses (5 required)")
			})
		})

		Convey("When an unknown tier is checked", func() {
			_, err := svc.Killproof(nil, 9)

			Convey("Then a fault is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When an application carries an invalid key", func() {
			c, err := svc.EvaluateApplication(account.Application{
				Token: account.TokenInfo{Text: "Invalid access token"},
				Tier:  1,
			})

			Convey("Then only the key group is returned", func() {
				So(err, ShouldBeNil)
				So(len(c.Groups()), ShouldEqual, 1)
				So(c.Groups()[0].Title(), ShouldEqual, account.KeyTitle)
				So(c.Passed(), ShouldBeFalse)
			})
		})
	})
}

func TestService_Shutdown(t *testing.T) {
	Convey("Given a started service whose log source blocks", t, func() {
		startCtx, cancelStart := context.WithCancel(context.Background())
		defer cancelStart()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		src := newFakeSource()
		src.block()
		svc := newService(src, service.WithWorkerCount(1))
		So(svc.Start(startCtx), ShouldBeNil)
		Reset(func() {
			src.release()
			_ = svc.Stop(context.Background())
		})

		var ids []string
		for i := range 4 {
			url := fmt.Sprintf("https://dps.report/queued-%d", i)
			src.put(url, cleanRecord(valeGuardian))
			req := request(url)
			req.SubmitterID = fmt.Sprintf("player-%d", i)
			sub, err := svc.Submit(ctx, req)
			So(err, ShouldBeNil)
			ids = append(ids, sub.ID)
		}
		<-src.entered

		Convey("When the start context is canceled before Stop", func() {
			cancelStart()
			src.release()
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every queued submission is validated", func() {
				for _, id := range ids {
					got, err := svc.Get(ctx, id)
					So(err, ShouldBeNil)
					So(got.Verdict, ShouldNotBeNil)
					So(got.Status, ShouldEqual, model.StatusPending)
					So(got.Pool, ShouldEqual, model.Pool1)
				}
			})
		})
	})
}

func TestService_ResumePending(t *testing.T) {
	Convey("Given a store holding a submission that was never validated", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		src := newFakeSource()
		src.put("https://dps.report/left", cleanRecord(valeGuardian))
		store := repository.NewMemoryStore()
		now := time.Now()
		left := model.Submission{
			ID:          "left",
			SubmitterID: "42",
			AccountName: accountName,
			Tier:        2,
			Role:        "dps",
			LogURL:      "https://dps.report/left",
			Status:      model.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		So(store.Create(ctx, left), ShouldBeNil)

		Convey("When the service starts", func() {
			svc := newService(src, service.WithStore(store))
			So(svc.Start(ctx), ShouldBeNil)
			Reset(func() { _ = svc.Stop(context.Background()) })

			got := waitProcessed(ctx, svc, "left")

			Convey("Then the submission is validated", func() {
				So(got.Verdict, ShouldNotBeNil)
				So(got.Verdict.Passed(), ShouldBeTrue)
				So(got.Pool, ShouldEqual, model.Pool1)
			})
		})

		Convey("When resuming is disabled", func() {
			svc := newService(src, service.WithStore(store), service.WithResumePending(false))
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the submission is left untouched", func() {
				got, err := store.Get(ctx, "left")
				So(err, ShouldBeNil)
				So(got.Verdict, ShouldBeNil)
				So(got.Pool, ShouldEqual, model.PoolUnassigned)
			})
		})
	})
}
