package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/eito54/grosoq/internal/adapters/http/api"
	"github.com/eito54/grosoq/internal/adapters/ocr"
	"github.com/eito54/grosoq/internal/adapters/repository"
	service "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

type stubRecognizer struct {
	rows  []model.RawPlayerResult
	err   error
	modes []model.Mode
}

func (s *stubRecognizer) Recognize(_ context.Context, _ []byte, mode model.Mode, _ model.PlayerMapping) ([]model.RawPlayerResult, error) {
	s.modes = append(s.modes, mode)
	return s.rows, s.err
}

type teamsBody struct {
	Teams []model.Standing `json:"teams"`
}

func newTestMux(rec *stubRecognizer) *http.ServeMux {
	svc := service.New(
		service.WithStore(repository.NewMemoryStore()),
		service.WithRecognizer(rec),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithMaxUploadBytes(1024), api.WithLogger(logger.Nop())).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestAnalyzeEndpoint(t *testing.T) {
	Convey("Given an API backed by a started service", t, func() {
		rec := &stubRecognizer{rows: []model.RawPlayerResult{
			{Rank: model.IntPtr(1), Name: "AKSKDfoo", IsCurrentPlayer: true},
			{Rank: model.IntPtr(2), Name: "AKSKDbar"},
		}}
		mux := newTestMux(rec)

		Convey("When a raw screenshot is posted", func() {
			w := do(mux, http.MethodPost, "/analyze", []byte("png-bytes"), "image/png")

			Convey("Then the outcome carries the ranked ledger", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				out := decode[service.Outcome](w)
				So(out.Success, ShouldBeTrue)
				So(out.Analysis.Ledger[0].Name, ShouldEqual, "AKSKD")
				So(out.Analysis.Ledger[0].Score, ShouldEqual, 27)
				So(rec.modes, ShouldResemble, []model.Mode{model.ModeRace})
			})

			Convey("And GET /scores returns the same ledger", func() {
				w := do(mux, http.MethodGet, "/scores", nil, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[teamsBody](w)
				So(len(body.Teams), ShouldEqual, 1)
				So(body.Teams[0].Rank, ShouldEqual, 1)
			})

			Convey("And the mapping and self player are exposed", func() {
				w := do(mux, http.MethodGet, "/mappings", nil, "")
				m := decode[map[string]string](w)
				So(m["AKSKDfoo"], ShouldEqual, "AKSKD")

				w = do(mux, http.MethodGet, "/self-player", nil, "")
				So(w.Body.String(), ShouldContainSubstring, "AKSKDfoo")

				w = do(mux, http.MethodDelete, "/mappings", nil, "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				w = do(mux, http.MethodGet, "/self-player", nil, "")
				So(w.Body.String(), ShouldContainSubstring, `"player":null`)
			})
		})

		Convey("When a multipart upload selects total mode", func() {
			rec.rows = []model.RawPlayerResult{{Name: "REDa", Team: "RED", TotalScore: model.IntPtr(40)}}
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, _ := mw.CreateFormFile("image", "shot.png")
			_, _ = part.Write([]byte("png"))
			So(mw.Close(), ShouldBeNil)

			w := do(mux, http.MethodPost, "/analyze?mode=total", buf.Bytes(), mw.FormDataContentType())
			So(w.Code, ShouldEqual, http.StatusOK)
			So(rec.modes, ShouldResemble, []model.Mode{model.ModeTotal})
		})

		Convey("When the request is unusable", func() {
			w := do(mux, http.MethodPost, "/analyze", nil, "image/png")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[service.Outcome](w).Code, ShouldEqual, service.CodeInvalidInput)

			w = do(mux, http.MethodPost, "/analyze?mode=lap", []byte("png"), "image/png")
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(mux, http.MethodPost, "/analyze", bytes.Repeat([]byte("x"), 1025), "image/png")
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(rec.modes, ShouldBeEmpty)
		})

		Convey("When the screenshot is not a result screen", func() {
			rec.err = ocr.ErrNotResultScreen
			w := do(mux, http.MethodPost, "/analyze", []byte("png"), "image/png")

			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			out := decode[service.Outcome](w)
			So(out.Success, ShouldBeFalse)
			So(out.Code, ShouldEqual, service.CodeNotResultScreen)
		})

		Convey("When the model endpoint is down", func() {
			rec.err = &ocr.StatusError{StatusCode: http.StatusBadGateway}
			w := do(mux, http.MethodPost, "/analyze", []byte("png"), "image/png")
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode[service.Outcome](w).Code, ShouldEqual, service.CodeTransport)
		})
	})
}

func TestScoresEndpoints(t *testing.T) {
	Convey("Given a ledger with one team", t, func() {
		rec := &stubRecognizer{rows: []model.RawPlayerResult{{Rank: model.IntPtr(1), Name: "REDa", Team: "RED"}}}
		mux := newTestMux(rec)
		So(do(mux, http.MethodPost, "/analyze", []byte("png"), "").Code, ShouldEqual, http.StatusOK)

		Convey("When a score is set for a new team", func() {
			w := do(mux, http.MethodPut, "/scores/BLU", []byte(`{"score":40}`), "application/json")

			Convey("Then both teams are ranked", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[teamsBody](w)
				So(len(body.Teams), ShouldEqual, 2)
				So(body.Teams[0].Name, ShouldEqual, "BLU")
				So(body.Teams[0].AddedScore, ShouldEqual, 0)
			})
		})

		Convey("When the body is invalid", func() {
			So(do(mux, http.MethodPut, "/scores/BLU", []byte(`{}`), "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/scores/BLU", []byte(`{"score":-1}`), "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/scores/BLU", []byte(`nope`), "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown team is deleted", func() {
			w := do(mux, http.MethodDelete, "/scores/NOPE", nil, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[map[string]string](w)["code"], ShouldEqual, "not_found")
		})

		Convey("When the ledger is reset", func() {
			So(do(mux, http.MethodDelete, "/scores", nil, "").Code, ShouldEqual, http.StatusOK)
			body := decode[teamsBody](do(mux, http.MethodGet, "/scores", nil, ""))
			So(body.Teams, ShouldBeEmpty)
		})

		Convey("When the current team is pinned", func() {
			w := do(mux, http.MethodPut, "/current-team", []byte(`{"team":" R "}`), "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[teamsBody](w).Teams[0].IsCurrentPlayer, ShouldBeTrue)

			w = do(mux, http.MethodGet, "/current-team", nil, "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"team":"R"}`)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a registered mux", t, func() {
		mux := newTestMux(&stubRecognizer{})

		Convey("Then /healthz serves Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", nil, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "grosoq_")
		})

		Convey("Then /stats reports the service state", func() {
			w := do(mux, http.MethodGet, "/stats", nil, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[service.Stats](w)
			So(stats.Started, ShouldBeTrue)
			So(stats.Busy, ShouldBeFalse)
		})

		Convey("Then unknown methods are rejected by the mux", func() {
			So(do(mux, http.MethodPost, "/scores", nil, "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
