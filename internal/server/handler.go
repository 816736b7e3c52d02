// internal/server/handler.go
//
// Debug HTTP surface for the serve subcommand.
//
// Context
// -------
// Operators point this at a config source and curl resolved environments
// while wiring up deployments.  Secrets are always masked on the wire; the
// endpoint exists to answer "which database does environment X hit", not to
// leak credentials.
//
// Routes
// ------
//   GET /environments            – sections and aliases in the source
//   GET /environments/{name}     – the resolved environment, masked
//   GET /healthz                 – liveness
//   GET /metrics                 – Prometheus instruments
//
// Notes
// -----
//   • Unknown names resolve to dynamic environments, so /environments/foo
//     is a 200 with "dynamic": true rather than a 404.
//   • Oxford commas, two spaces after periods.

package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opendatacube/odc-config/internal/cfg"
)

// NewRouter builds the chi router over a warmed-or-not resolver.
func NewRouter(res *cfg.Resolver) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/environments", func(w http.ResponseWriter, _ *http.Request) {
		concrete, aliases := res.Sections()
		writeJSON(w, http.StatusOK, map[string]any{
			"source":       res.SourceOrigin(),
			"environments": concrete,
			"aliases":      aliases,
		})
	})

	r.Get("/environments/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		env, err := res.GetEnvironment(name)
		if err != nil {
			zap.S().Warnw("environment resolution failed", "environment", name, "err", err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    env.Name(),
			"aliases": env.Aliases(),
			"dynamic": env.Dynamic(),
			"options": MaskedOptions(env),
		})
	})

	return r
}

// MaskedOptions flattens an environment's options with secret values
// replaced by a fixed placeholder.
func MaskedOptions(env *cfg.Environment) map[string]any {
	out := map[string]any{}
	for _, name := range env.OptionNames() {
		v, _ := env.Option(name)
		switch {
		case sensitiveOption(name):
			if s, ok := v.(string); ok && s != "" {
				v = "********"
			}
		case name == cfg.OptDBURL:
			if s, ok := v.(string); ok {
				v = redactURL(s)
			}
		}
		out[name] = v
	}
	return out
}

func sensitiveOption(name string) bool {
	return strings.Contains(name, "password") || strings.Contains(name, "secret")
}

// redactURL hides the password portion of a connection URL, if present.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); !has {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxx")
	return strings.Replace(u.String(), ":xxx@", ":********@", 1)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}
