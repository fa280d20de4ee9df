package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/httputil"
	"github.com/ignite/content-signals/internal/service/segment"
)

type segmentRequest struct {
	Name  string         `json:"name"`
	Rules domain.RuleSet `json:"rules"`
}

type signalsResponse struct {
	Count   int                   `json:"count"`
	Signals []domain.MergedSignal `json:"signals"`
}

func segmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segment.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, segment.ErrInvalid):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func (h *Handlers) segmentOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Segments == nil {
		unavailable(w, "segments")
		return "", false
	}
	return httputil.RequireOwner(w, r)
}

// ListSegments returns the owner's segments.
//
//	GET /api/segments
func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	segs, err := h.Segments.List(r.Context(), owner)
	if err != nil {
		segmentError(w, err)
		return
	}
	if segs == nil {
		segs = []domain.Segment{}
	}
	httputil.OK(w, map[string]interface{}{"segments": segs})
}

// CreateSegment stores a new segment.
//
//	POST /api/segments
func (h *Handlers) CreateSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	var req segmentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	seg, err := h.Segments.Create(r.Context(), owner, req.Name, req.Rules)
	if err != nil {
		segmentError(w, err)
		return
	}
	httputil.Created(w, seg)
}

// GetSegment returns one segment.
//
//	GET /api/segments/{id}
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	seg, err := h.Segments.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		segmentError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// UpdateSegment replaces a segment's name and rules.
//
//	PUT /api/segments/{id}
func (h *Handlers) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	var req segmentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	seg, err := h.Segments.Update(r.Context(), owner, chi.URLParam(r, "id"), req.Name, req.Rules)
	if err != nil {
		segmentError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// DeleteSegment removes a segment.
//
//	DELETE /api/segments/{id}
func (h *Handlers) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	if err := h.Segments.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		segmentError(w, err)
		return
	}
	httputil.NoContent(w)
}

// PreviewSegment evaluates a stored segment.
//
//	GET /api/segments/{id}/preview
func (h *Handlers) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	signals, err := h.Segments.Preview(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		segmentError(w, err)
		return
	}
	writeSignals(w, signals)
}

// EvaluateSegment evaluates ad hoc rules without storing them.
//
//	POST /api/segments/evaluate
func (h *Handlers) EvaluateSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.segmentOwner(w, r)
	if !ok {
		return
	}
	var rules domain.RuleSet
	if !httputil.Decode(w, r, &rules) {
		return
	}
	signals, err := h.Segments.Evaluate(r.Context(), owner, rules)
	if err != nil {
		segmentError(w, err)
		return
	}
	writeSignals(w, signals)
}

func writeSignals(w http.ResponseWriter, signals []domain.MergedSignal) {
	if signals == nil {
		signals = []domain.MergedSignal{}
	}
	httputil.OK(w, signalsResponse{Count: len(signals), Signals: signals})
}
