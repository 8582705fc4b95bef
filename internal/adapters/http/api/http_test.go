package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tiergate/internal/adapters/http/api"
	"github.com/okian/tiergate/internal/adapters/logsource"
	"github.com/okian/tiergate/internal/adapters/repository"
	service "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/domain/account"
	"github.com/okian/tiergate/internal/domain/feedback"
	"github.com/okian/tiergate/internal/domain/killproof"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/domain/validation"
)

type mockDeps struct {
	subs      map[string]model.Submission
	submitErr error
	reval     *feedback.Collection
	revalErr  error

	lastReq      model.SubmissionRequest
	lastDebug    bool
	lastMechanic string
	lastStatus   string
}

func newMockDeps() *mockDeps {
	return &mockDeps{subs: map[string]model.Submission{
		"s1": {ID: "s1", SubmitterID: "42", AccountName: "Me.1234", Tier: 2, LogURL: "https://dps.report/a", Status: model.StatusPending},
	}}
}

func (m *mockDeps) Submit(_ context.Context, req model.SubmissionRequest) (model.Submission, error) {
	m.lastReq = req
	if m.submitErr != nil {
		return model.Submission{}, m.submitErr
	}
	return model.Submission{ID: "new", Status: model.StatusPending}, nil
}

func (m *mockDeps) Get(_ context.Context, id string) (model.Submission, error) {
	sub, ok := m.subs[id]
	if !ok {
		return model.Submission{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return sub, nil
}

func (m *mockDeps) History(_ context.Context, submitterID string) ([]model.Submission, error) {
	var out []model.Submission
	for _, s := range m.subs {
		if s.SubmitterID == submitterID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockDeps) SetStatus(_ context.Context, id, status string) error {
	m.lastStatus = status
	st, err := model.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidStatus, status)
	}
	sub, ok := m.subs[id]
	if !ok {
		return repository.ErrNotFound
	}
	sub.Status = st
	m.subs[id] = sub
	return nil
}

func (m *mockDeps) Revalidate(_ context.Context, _ string, debug bool, mechanic string) (*feedback.Collection, error) {
	m.lastDebug, m.lastMechanic = debug, mechanic
	return m.reval, m.revalErr
}

func (m *mockDeps) Killproof(defeated []string, tier int) (*feedback.Group, error) {
	return killproof.Evaluate(defeated, tier, 30)
}

func (m *mockDeps) EvaluateApplication(app account.Application) (*feedback.Collection, error) {
	return account.Evaluate(app, nil, 30)
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true}
}

type mockReady struct{ err error }

func (m mockReady) Ready(context.Context) error { return m.err }

func newRouter(deps *mockDeps, ready error) http.Handler {
	r := api.NewRouter(nil)
	api.NewServer(deps, mockStats{}, mockReady{err: ready}).Register(context.Background(), r)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var m map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &m), ShouldBeNil)
	return m
}

func TestSubmissionRoutes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := newMockDeps()
		h := newRouter(deps, nil)

		Convey("When a submission is posted", func() {
			w := do(h, http.MethodPost, "/submissions",
				`{"submitter_id":"42","account_name":"Me.1234","tier":2,"role":"dps","log_url":"https://dps.report/x"}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decode(w)["id"], ShouldEqual, "new")
				So(deps.lastReq.Tier, ShouldEqual, 2)
				So(deps.lastReq.LogURL, ShouldEqual, "https://dps.report/x")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/submissions", `{`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the service reports the log in flight", func() {
			deps.submitErr = fmt.Errorf("%w: x", service.ErrInFlight)
			w := do(h, http.MethodPost, "/submissions", `{}`)

			Convey("Then it is a conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrBackpressure
			w := do(h, http.MethodPost, "/submissions", `{}`)

			Convey("Then the client is asked to back off", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When a submission is read", func() {
			w := do(h, http.MethodGet, "/submissions/s1", "")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				m := decode(w)
				So(m["status"], ShouldEqual, "pending")
				So(m["account_name"], ShouldEqual, "Me.1234")
			})
		})

		Convey("When an unknown submission is read", func() {
			w := do(h, http.MethodGet, "/submissions/nope", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a reviewer sets the status", func() {
			w := do(h, http.MethodPut, "/submissions/s1/status", `{"status":"accepted"}`)

			Convey("Then the updated submission is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["status"], ShouldEqual, "accepted")
			})
		})

		Convey("When a reviewer sets an unknown status", func() {
			w := do(h, http.MethodPut, "/submissions/s1/status", `{"status":"maybe"}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a submission is revalidated with debug flags", func() {
			c := feedback.NewCollection()
			g := feedback.NewGroup("Checking mechanics")
			g.Add(feedback.Successf("Pulsar: 0"))
			c.AddGroup(g)
			deps.reval = c
			w := do(h, http.MethodPost, "/submissions/s1/revalidate?debug=true&mechanic=Pulsar", "")

			Convey("Then the flags reach the service and the verdict is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastDebug, ShouldBeTrue)
				So(deps.lastMechanic, ShouldEqual, "Pulsar")
				So(decode(w)["passed"], ShouldEqual, true)
			})
		})

		Convey("When the debug flag is malformed", func() {
			w := do(h, http.MethodPost, "/submissions/s1/revalidate?debug=perhaps", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When revalidation hits a malformed log", func() {
			deps.revalErr = fmt.Errorf("validate: %w", validation.ErrMalformedRecord)
			w := do(h, http.MethodPost, "/submissions/s1/revalidate", "")

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When the log host is down", func() {
			deps.revalErr = fmt.Errorf("fetch: %w", logsource.ErrFetch)
			w := do(h, http.MethodPost, "/submissions/s1/revalidate", "")

			Convey("Then it is a bad gateway", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
			})
		})

		Convey("When a player's history is read", func() {
			w := do(h, http.MethodGet, "/players/42/submissions", "")

			Convey("Then their submissions are listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var list []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
				So(len(list), ShouldEqual, 1)
			})
		})

		Convey("When an unknown player's history is read", func() {
			w := do(h, http.MethodGet, "/players/7/submissions", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})
	})
}

func TestCheckRoutes(t *testing.T) {
	Convey("Given the API router", t, func() {
		h := newRouter(newMockDeps(), nil)

		Convey("When a killproof list is posted", func() {
			w := do(h, http.MethodPost, "/killproof", `{"defeated":["A","B","C","D","E"],"tier":1}`)

			Convey("Then the group is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				m := decode(w)
				So(m["severity"], ShouldEqual, "success")
				So(m["tag"], ShouldEqual, ":white_check_mark:")
			})
		})

		Convey("When an unknown tier is posted", func() {
			w := do(h, http.MethodPost, "/killproof", `{"defeated":[],"tier":5}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an application with an invalid key is posted", func() {
			w := do(h, http.MethodPost, "/applications", `{"token_info":{"text":"Invalid access token"},"tier":1}`)

			Convey("Then only the key group fails", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				m := decode(w)
				So(m["passed"], ShouldEqual, false)
				So(len(m["groups"].([]any)), ShouldEqual, 1)
			})
		})
	})
}

func TestHealthRoutes(t *testing.T) {
	Convey("Given a ready router", t, func() {
		h := newRouter(newMockDeps(), nil)

		Convey("Then health serves metrics and stats are JSON", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/metrics", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/readyz", "").Code, ShouldEqual, http.StatusOK)
			So(decode(do(h, http.MethodGet, "/stats", ""))["started"], ShouldEqual, true)
		})
	})

	Convey("Given a router whose store is down", t, func() {
		h := newRouter(newMockDeps(), errors.New("connection refused"))

		Convey("Then readiness fails", func() {
			w := do(h, http.MethodGet, "/readyz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		Convey("Then the kind and the cause both match", func() {
			err := api.Wrap("op", fmt.Errorf("x: %w", repository.ErrConflict))
			So(errors.Is(err, api.ErrConflict), ShouldBeTrue)
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			status, code := api.StatusOf(err)
			So(status, ShouldEqual, http.StatusConflict)
			So(code, ShouldEqual, "conflict")
		})

		Convey("Then unknown errors are internal", func() {
			status, _ := api.StatusOf(api.Wrap("op", errors.New("boom")))
			So(status, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Then a kind without cause prints the kind", func() {
			So(api.NewKind("op", api.ErrBadRequest).Error(), ShouldEqual, "op: bad request")
		})
	})
}
