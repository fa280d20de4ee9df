package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/content-signals/internal/attribution"
	"github.com/ignite/content-signals/internal/domain"
	"github.com/ignite/content-signals/internal/pkg/httputil"
)

// UploadAttribution ingests a CSV upload, sent either as the raw body or as
// the "file" part of a multipart form.
//
//	POST /api/attribution/upload?source=
func (h *Handlers) UploadAttribution(w http.ResponseWriter, r *http.Request) {
	if h.Attribution == nil {
		unavailable(w, "attribution")
		return
	}
	owner, ok := httputil.RequireOwner(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload())

	source := strings.TrimSpace(r.URL.Query().Get("source"))
	var body io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, "multipart upload requires a file part: "+err.Error())
			return
		}
		defer file.Close()
		body = file
		if source == "" {
			source = header.Filename
		}
	}

	res, err := h.Attribution.IngestCSV(r.Context(), owner, source, body)
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload too large")
		case errors.Is(err, attribution.ErrNoURLColumn), errors.Is(err, attribution.ErrMissingOwner):
			httputil.BadRequest(w, err.Error())
		case res != nil:
			httputil.ErrorWithDetails(w, http.StatusInternalServerError, "upload partially ingested", res)
		default:
			httputil.BadRequest(w, err.Error())
		}
		return
	}
	httputil.Created(w, res)
}

type snowflakeImportRequest struct {
	Since string `json:"since"`
}

// ImportSnowflake appends the owner's warehouse rows.
//
//	POST /api/attribution/import/snowflake
func (h *Handlers) ImportSnowflake(w http.ResponseWriter, r *http.Request) {
	if h.Attribution == nil || !h.Attribution.HasWarehouse() {
		unavailable(w, "snowflake import")
		return
	}
	owner, ok := httputil.RequireOwner(w, r)
	if !ok {
		return
	}
	var req snowflakeImportRequest
	if r.ContentLength != 0 {
		if !httputil.Decode(w, r, &req) {
			return
		}
	}
	var since time.Time
	if req.Since != "" {
		t, _, ok := domain.ParseUploadDate(req.Since)
		if !ok {
			httputil.BadRequest(w, "since must be a date such as 2024-01-31")
			return
		}
		since = t
	}

	res, err := h.Attribution.ImportWarehouse(r.Context(), owner, since)
	if err != nil {
		if res != nil {
			httputil.ErrorWithDetails(w, http.StatusInternalServerError, "import partially ingested", res)
			return
		}
		httputil.Error(w, http.StatusBadGateway, "warehouse import failed: "+err.Error())
		return
	}
	httputil.Created(w, res)
}
