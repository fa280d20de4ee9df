package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/content-signals/internal/classify"
	"github.com/ignite/content-signals/internal/pkg/httputil"
	"github.com/ignite/content-signals/internal/store"
)

type classifyRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

// Classify classifies one URL, returning the stored record unless forced.
//
//	POST /api/classify
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	if h.Classifier == nil {
		unavailable(w, "classification")
		return
	}
	var req classifyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	out, err := h.Classifier.Classify(r.Context(), classify.Request{
		URL:     req.URL,
		OwnerID: httputil.OwnerID(r),
		Force:   req.Force,
	})
	if err != nil {
		classifyError(w, err)
		return
	}
	httputil.OK(w, out)
}

func classifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, classify.ErrInvalidURL) {
		httputil.BadRequest(w, err.Error())
		return
	}
	var se *classify.StageError
	if errors.As(err, &se) {
		details := map[string]string{"stage": se.Stage, "url": se.URL}
		switch se.Stage {
		case classify.StageExtract, classify.StageParse:
			httputil.ErrorWithDetails(w, http.StatusUnprocessableEntity, err.Error(), details)
		case classify.StageComplete, classify.StageTaxonomy:
			httputil.ErrorWithDetails(w, http.StatusBadGateway, err.Error(), details)
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.InternalError(w, err)
}

type bulkRequest struct {
	URLs    []string `json:"urls"`
	FeedURL string   `json:"feed_url"`
	Max     int      `json:"max"`
	Force   bool     `json:"force"`
}

type bulkResponse struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Cached    int                `json:"cached"`
	Results   []classify.Outcome `json:"results"`
}

// ClassifyBulk classifies a list of URLs or the items of a feed. Per-URL
// failures are reported in the results.
//
//	POST /api/classify/bulk
func (h *Handlers) ClassifyBulk(w http.ResponseWriter, r *http.Request) {
	if h.Classifier == nil {
		unavailable(w, "classification")
		return
	}
	var req bulkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	owner := httputil.OwnerID(r)

	var results []classify.Outcome
	switch {
	case strings.TrimSpace(req.FeedURL) != "":
		max := req.Max
		if max <= 0 || max > h.maxBulk() {
			max = h.maxBulk()
		}
		out, err := h.Classifier.ClassifyFeed(r.Context(), strings.TrimSpace(req.FeedURL), owner, req.Force, max)
		if err != nil {
			if errors.Is(err, classify.ErrInvalidURL) {
				httputil.BadRequest(w, err.Error())
				return
			}
			httputil.Error(w, http.StatusBadGateway, "feed unavailable: "+err.Error())
			return
		}
		results = out
	case len(req.URLs) == 0:
		httputil.BadRequest(w, "urls or feed_url is required")
		return
	case len(req.URLs) > h.maxBulk():
		httputil.BadRequest(w, "too many urls in one request")
		return
	default:
		reqs := make([]classify.Request, len(req.URLs))
		for i, u := range req.URLs {
			reqs[i] = classify.Request{URL: u, OwnerID: owner, Force: req.Force}
		}
		results = h.Classifier.ClassifyBulk(r.Context(), reqs)
	}

	resp := bulkResponse{Total: len(results), Results: results}
	for _, o := range results {
		switch {
		case o.Error != "":
			resp.Failed++
		default:
			resp.Succeeded++
			if o.Cached {
				resp.Cached++
			}
		}
	}
	httputil.OK(w, resp)
}

// GetClassification returns the stored record for a URL.
//
//	GET /api/classifications?url=
func (h *Handlers) GetClassification(w http.ResponseWriter, r *http.Request) {
	if h.Classifications == nil {
		unavailable(w, "classification store")
		return
	}
	norm, err := classify.Normalize(r.URL.Query().Get("url"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	rec, err := h.Classifications.Get(r.Context(), norm)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "no classification for "+norm)
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rec)
}
