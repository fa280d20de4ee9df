package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/pkg/httputil"
	"github.com/ignite/content-signals/internal/taxonomy"
)

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) (*taxonomy.Index, bool) {
	if h.Taxonomy == nil {
		unavailable(w, "taxonomy")
		return nil, false
	}
	var (
		idx *taxonomy.Index
		err error
	)
	if src := strings.TrimSpace(r.URL.Query().Get("source")); src != "" {
		idx, err = h.Taxonomy.Get(r.Context(), src)
	} else {
		idx, err = h.Taxonomy.Current(r.Context())
	}
	if err != nil {
		taxonomyError(w, err)
		return nil, false
	}
	return idx, true
}

func taxonomyError(w http.ResponseWriter, err error) {
	var fe *taxonomy.FormatError
	var se *taxonomy.SizeError
	switch {
	case errors.Is(err, taxonomy.ErrSource):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, taxonomy.ErrNoIndex):
		httputil.Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &fe), errors.As(err, &se):
		httputil.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		httputil.Error(w, http.StatusBadGateway, "taxonomy unavailable: "+err.Error())
	}
}

// GetTaxonomy returns every entry of the index.
//
//	GET /api/taxonomy?source=
func (h *Handlers) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.index(w, r)
	if !ok {
		return
	}
	entries := idx.Entries()
	if level := r.URL.Query().Get("roots"); level == "true" {
		entries = idx.Roots()
	}
	httputil.OK(w, map[string]interface{}{
		"source":  idx.Source(),
		"version": idx.Version(),
		"count":   len(entries),
		"entries": entries,
	})
}

// GetTaxonomyCount returns the entry count.
//
//	GET /api/taxonomy/count
func (h *Handlers) GetTaxonomyCount(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.index(w, r)
	if !ok {
		return
	}
	httputil.OK(w, map[string]interface{}{"count": idx.Len(), "version": idx.Version()})
}

// GetTaxonomyStats returns index statistics and the build report.
//
//	GET /api/taxonomy/stats
func (h *Handlers) GetTaxonomyStats(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.index(w, r)
	if !ok {
		return
	}
	httputil.OK(w, map[string]interface{}{
		"source":   idx.Source(),
		"version":  idx.Version(),
		"variant":  idx.Variant(),
		"built_at": idx.BuiltAt(),
		"stats":    idx.Stats(),
		"report":   idx.Report(),
	})
}

type cachedIndex struct {
	Source  string               `json:"source"`
	Version string               `json:"version"`
	Entries int                  `json:"entries"`
	BuiltAt time.Time            `json:"built_at"`
	Report  taxonomy.BuildReport `json:"report"`
	Sample  []taxonomy.Entry     `json:"sample"`
}

// GetTaxonomyDebug lists every cached index without building anything.
//
//	GET /api/taxonomy/debug
func (h *Handlers) GetTaxonomyDebug(w http.ResponseWriter, r *http.Request) {
	if h.Taxonomy == nil {
		unavailable(w, "taxonomy")
		return
	}
	cached := h.Taxonomy.Cached()
	out := make([]cachedIndex, 0, len(cached))
	for src, idx := range cached {
		sample := idx.Roots()
		if len(sample) > 5 {
			sample = sample[:5]
		}
		out = append(out, cachedIndex{
			Source:  src,
			Version: idx.Version(),
			Entries: idx.Len(),
			BuiltAt: idx.BuiltAt(),
			Report:  idx.Report(),
			Sample:  sample,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	httputil.OK(w, map[string]interface{}{
		"default_source": h.Taxonomy.DefaultSource(),
		"cached":         out,
	})
}

type reloadRequest struct {
	Source string `json:"source"`
}

// ReloadTaxonomy rebuilds an index. On failure the last good index keeps
// serving and its version is reported.
//
//	POST /api/taxonomy/reload
func (h *Handlers) ReloadTaxonomy(w http.ResponseWriter, r *http.Request) {
	if h.Taxonomy == nil {
		unavailable(w, "taxonomy")
		return
	}
	var req reloadRequest
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}

	idx, err := h.Taxonomy.Reload(r.Context(), strings.TrimSpace(req.Source))
	if errors.Is(err, taxonomy.ErrSource) {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		details := map[string]interface{}{}
		if idx != nil {
			details["serving_version"] = idx.Version()
		}
		httputil.ErrorWithDetails(w, http.StatusBadGateway, "taxonomy reload failed: "+err.Error(), details)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"source":  idx.Source(),
		"version": idx.Version(),
		"stats":   idx.Stats(),
		"report":  idx.Report(),
	})
}
