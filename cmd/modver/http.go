package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	modver "github.com/btt-go/btt-modver"
)

// newMux 诊断用 HTTP 接口，鉴权由上游负责。
func newMux(res *modver.Resolver, cache *modver.MetadataCache) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ss := res.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot_version": ss.Version,
			"snapshot_digest":  ss.Digest,
			"modules":          len(ss.Modules),
			"metadata_records": cache.Len(),
		})
	})

	mux.HandleFunc("GET /versions/{product}", func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if r.URL.Query().Get("source") == "table" {
			writeJSON(w, http.StatusOK, cache.ReadAllForUser(user))
			return
		}
		versions, err := res.ModuleVersions(r.Context(), r.PathValue("product"), user)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, versions)
	})

	mux.HandleFunc("GET /modules/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, ok := cache.Get(id)
		if !ok {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("%w: %s", modver.ErrNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /flags/{flag}", func(w http.ResponseWriter, r *http.Request) {
		flag, err := modver.ValidateFlagName(r.PathValue("flag"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := userFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, res.Feature(r.Context(), flag, user))
	})

	return mux
}

func userFromQuery(r *http.Request) (modver.User, error) {
	q := r.URL.Query()
	attrs := make(map[string]string)
	for k, vs := range q {
		if name, ok := strings.CutPrefix(k, "attr."); ok && name != "" && len(vs) > 0 {
			attrs[name] = vs[0]
		}
	}
	return parseUser(q.Get("user"), q.Get("group"), q.Get("channel"), attrs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	switch {
	case errors.Is(err, modver.ErrInvalidFlagName):
		status = http.StatusBadRequest
	case errors.Is(err, modver.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
