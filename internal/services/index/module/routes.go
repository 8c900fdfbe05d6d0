package module

import (
	"net/http"
	"strconv"

	"warcdex/internal/core/version"
	perr "warcdex/internal/platform/errors"
	phttp "warcdex/internal/platform/net/http"
	"warcdex/internal/services/index/domain"
	relaydomain "warcdex/internal/services/relay/domain"

	"github.com/go-chi/chi/v5"
)

// Health is the /healthz body
type Health struct {
	Status string            `json:"status"`
	Build  version.BuildInfo `json:"build"`
}

// Status is the /status body
type Status struct {
	RunID   string                 `json:"run_id,omitempty"`
	Workers []domain.Progress      `json:"workers"`
	Totals  domain.CounterSnapshot `json:"totals"`
	Relay   *relaydomain.Stats     `json:"relay,omitempty"`
}

// MountRoutes mounts the read-only status routes
func (m *Module) MountRoutes(r phttp.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := m.deps.Check(req.Context()); err != nil {
			phttp.RespondError(w, req, perr.Wrap(err, perr.ErrorCodeUnavailable, "backends not ready"))
			return
		}
		phttp.RespondOK(w, req, Health{Status: "ok", Build: version.Info("warcdex-index")})
	})
	r.Route("/status", func(sr phttp.Router) {
		phttp.GetJSON(sr, "/", m.status)
		phttp.GetJSON(sr, "/workers/{worker}", m.worker)
	})
}

func (m *Module) snapshot() Status {
	st := Status{RunID: m.ports.Runner.RunID(), Workers: m.ports.Runner.Progress()}
	for _, p := range st.Workers {
		st.Totals = st.Totals.Add(p.Counts)
	}
	if m.ports.Relay != nil {
		rs := m.ports.Relay.Stats()
		st.Relay = &rs
	}
	return st
}

func (m *Module) status(_ *http.Request) (any, error) {
	return m.snapshot(), nil
}

func (m *Module) worker(r *http.Request) (any, error) {
	raw := chi.URLParam(r, "worker")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, perr.WithField(perr.InvalidArgf("worker %q is not a number", raw), "worker")
	}
	for _, p := range m.ports.Runner.Progress() {
		if p.Worker == n {
			return p, nil
		}
	}
	return nil, perr.NotFoundf("no worker %d in the current run", n)
}
