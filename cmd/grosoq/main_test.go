package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/eito54/grosoq/internal/adapters/http/api"
	"github.com/eito54/grosoq/internal/adapters/repository"
	service "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

type stubRecognizer struct {
	modes []model.Mode
}

func (s *stubRecognizer) Recognize(_ context.Context, _ []byte, mode model.Mode, _ model.PlayerMapping) ([]model.RawPlayerResult, error) {
	s.modes = append(s.modes, mode)
	if mode == model.ModeTotal {
		return []model.RawPlayerResult{{Name: "AKSKDfoo", TotalScore: model.IntPtr(120)}}, nil
	}
	return []model.RawPlayerResult{
		{Rank: model.IntPtr(1), Name: "AKSKDfoo", IsCurrentPlayer: true},
		{Rank: model.IntPtr(2), Name: "AKSKDbar"},
	}, nil
}

func startServer(rec *stubRecognizer) *httptest.Server {
	svc := service.New(
		service.WithStore(repository.NewMemoryStore()),
		service.WithRecognizer(rec),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func runCLI(server string, args ...string) (string, error) {
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCLI(t *testing.T) {
	Convey("Given a running server and a screenshot on disk", t, func() {
		rec := &stubRecognizer{}
		srv := startServer(rec)
		Reset(srv.Close)

		shot := filepath.Join(t.TempDir(), "race.png")
		So(os.WriteFile(shot, []byte("png"), 0o600), ShouldBeNil)

		Convey("When analyze is run", func() {
			out, err := runCLI(srv.URL, "analyze", shot)

			Convey("Then the results and the ranking are printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "AKSKDfoo")
				So(out, ShouldContainSubstring, "27")
				So(out, ShouldContainSubstring, "+27")
			})

			Convey("And scores prints the ledger as JSON on request", func() {
				out, err := runCLI(srv.URL, "--json", "scores")
				So(err, ShouldBeNil)
				var standings []model.Standing
				So(json.Unmarshal([]byte(out), &standings), ShouldBeNil)
				So(standings[0].Name, ShouldEqual, "AKSKD")
				So(standings[0].Score, ShouldEqual, 27)
			})

			Convey("And mappings lists the players and the self player", func() {
				out, err := runCLI(srv.URL, "mappings")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "AKSKDbar")
				So(out, ShouldContainSubstring, "You: AKSKDfoo")
			})

			Convey("And edit, pin and delete change the ledger", func() {
				out, err := runCLI(srv.URL, "edit", "BLU", "40")
				So(err, ShouldBeNil)
				So(strings.Index(out, "BLU"), ShouldBeLessThan, strings.Index(out, "AKSKD"))

				_, err = runCLI(srv.URL, "pin", "BLU")
				So(err, ShouldBeNil)
				out, err = runCLI(srv.URL, "pin")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Pinned team: BLU")

				_, err = runCLI(srv.URL, "delete", "BLU")
				So(err, ShouldBeNil)
				_, err = runCLI(srv.URL, "delete", "BLU")
				So(err, ShouldNotBeNil)
			})

			Convey("And reset clears only what was asked", func() {
				_, err := runCLI(srv.URL, "reset", "--mappings")
				So(err, ShouldBeNil)

				out, _ := runCLI(srv.URL, "mappings")
				So(out, ShouldContainSubstring, "No players mapped yet.")
				out, _ = runCLI(srv.URL, "scores")
				So(out, ShouldContainSubstring, "AKSKD")

				_, err = runCLI(srv.URL, "reset")
				So(err, ShouldBeNil)
				out, _ = runCLI(srv.URL, "scores")
				So(out, ShouldContainSubstring, "No teams yet.")
			})
		})

		Convey("When analyze is run with --total", func() {
			_, err := runCLI(srv.URL, "analyze", "--total", shot)
			So(err, ShouldBeNil)
			So(rec.modes, ShouldResemble, []model.Mode{model.ModeTotal})
		})

		Convey("When the image is missing", func() {
			_, err := runCLI(srv.URL, "analyze", filepath.Join(t.TempDir(), "nope.png"))
			So(err, ShouldNotBeNil)
			So(rec.modes, ShouldBeEmpty)
		})

		Convey("When stats is run", func() {
			out, err := runCLI(srv.URL, "stats")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "idle")
		})
	})
}
