package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/content-signals/internal/pkg/httputil"
	"github.com/ignite/content-signals/internal/reconcile"
)

type mergeRequest struct {
	OwnerID string   `json:"owner_id"`
	Owners  []string `json:"owners"`
}

// Merge reconciles attribution with classification. The owner comes from
// the body or the owner header; "owners" runs several in parallel. With
// neither, every record is reconciled.
//
//	POST /api/merge
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		unavailable(w, "reconciliation")
		return
	}
	var req mergeRequest
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}

	if len(req.Owners) > 0 {
		owners := make([]string, 0, len(req.Owners))
		for _, o := range req.Owners {
			if o = strings.TrimSpace(o); o != "" {
				owners = append(owners, o)
			}
		}
		results, err := h.Reconciler.RunOwners(r.Context(), owners)
		if err != nil {
			httputil.ErrorWithDetails(w, http.StatusInternalServerError, "reconciliation failed: "+err.Error(), results)
			return
		}
		httputil.OK(w, map[string]interface{}{"results": results})
		return
	}

	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		owner = httputil.OwnerID(r)
	}
	res, err := h.Reconciler.Run(r.Context(), owner)
	switch {
	case errors.Is(err, reconcile.ErrRunInProgress):
		httputil.ErrorWithDetails(w, http.StatusConflict, err.Error(), res)
	case err != nil:
		httputil.ErrorWithDetails(w, http.StatusInternalServerError, "reconciliation failed: "+err.Error(), res)
	default:
		httputil.OK(w, res)
	}
}
