package endpoints

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/internal/storage"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// PlacementLookup resolves mediation placements to partner placements
type PlacementLookup interface {
	GetByMediationPlacement(ctx context.Context, mediationPlacement string) (*storage.Placement, error)
}

// AdHandler drives the ad lifecycle over HTTP and keeps handles by ID
type AdHandler struct {
	adapter  *adapter.Adapter
	catalog  PlacementLookup
	recorder EventRecorder
	delegate *recordingDelegate
	timeout  time.Duration

	mu      sync.RWMutex
	handles map[string]*adapter.AdHandle
}

// NewAdHandler creates an ad handler. catalog and recorder may be nil.
func NewAdHandler(a *adapter.Adapter, catalog PlacementLookup, recorder EventRecorder) *AdHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AdHandler{
		adapter:  a,
		catalog:  catalog,
		recorder: recorder,
		delegate: &recordingDelegate{recorder: recorder},
		timeout:  defaultCompletionTimeout,
		handles:  make(map[string]*adapter.AdHandle),
	}
}

// RegisterRoutes registers the handler's routes on mux
func (h *AdHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ads", h.Load)
	mux.HandleFunc("GET /v1/ads/{id}", h.Get)
	mux.HandleFunc("POST /v1/ads/{id}/show", h.Show)
	mux.HandleFunc("POST /v1/ads/{id}/click", h.Click)
	mux.HandleFunc("DELETE /v1/ads/{id}", h.Invalidate)
	mux.HandleFunc("GET /v1/placements/{placement}", h.Placement)
}

// LoadRequest is the body of POST /v1/ads
type LoadRequest struct {
	LoadID    string        `json:"load_id,omitempty"`
	Placement string        `json:"placement"`
	Format    string        `json:"format,omitempty"`
	AdMarkup  string        `json:"adm,omitempty"`
	Size      *adapter.Size `json:"size,omitempty"`
	// Async returns as soon as the load has started
	Async bool `json:"async,omitempty"`
}

// AdResponse describes an ad handle
type AdResponse struct {
	ID               string              `json:"id"`
	LoadID           string              `json:"load_id"`
	Placement        string              `json:"placement"`
	PartnerPlacement string              `json:"partner_placement,omitempty"`
	Format           string              `json:"format"`
	State            string              `json:"state"`
	BannerSize       *adapter.BannerSize `json:"banner_size,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func newAdResponse(ad *adapter.AdHandle) AdResponse {
	return AdResponse{
		ID:               ad.ID,
		LoadID:           ad.Request.LoadID,
		Placement:        ad.Placement(),
		PartnerPlacement: ad.Request.PartnerPlacement,
		Format:           string(ad.Format()),
		State:            ad.State().String(),
		BannerSize:       ad.BannerSize,
		CreatedAt:        ad.CreatedAt,
	}
}

type loadResult struct {
	handle *adapter.AdHandle
	err    error
}

// Load starts a load and, unless async, waits for the partner's result
func (h *AdHandler) Load(w http.ResponseWriter, r *http.Request) {
	var body LoadRequest
	if err := decodeBody(r, &body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}
	if body.Placement == "" {
		sendError(w, http.StatusBadRequest, "missing_placement", "placement is required")
		return
	}

	req, err := h.buildRequest(r.Context(), body)
	if err != nil {
		if errors.Is(err, adapter.ErrUnsupportedFormat) {
			sendAdapterError(w, err)
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Str("placement", body.Placement).Msg("Placement lookup failed")
		sendError(w, http.StatusInternalServerError, "catalog_error", "Failed to resolve placement")
		return
	}
	ctx := logger.WithLoadID(r.Context(), req.LoadID)

	// A failed load is dropped once the handle has been stored
	var handle *adapter.AdHandle
	stored := make(chan struct{})
	done := make(chan loadResult, 1)
	handle, err = h.adapter.Load(ctx, req, h.delegate, func(ad *adapter.AdHandle, err error) {
		if err != nil {
			e := requestEvent(events.TypeLoadFailed, req)
			e.Error = err.Error()
			h.recorder.Record(e)
			go func() {
				<-stored
				h.forget(handle.ID)
			}()
		} else {
			h.recorder.Record(handleEvent(events.TypeLoad, ad))
		}
		done <- loadResult{handle: ad, err: err}
	})
	if err != nil {
		sendAdapterError(w, err)
		return
	}
	h.store(handle)
	close(stored)

	if body.Async {
		sendJSON(w, http.StatusAccepted, newAdResponse(handle))
		return
	}

	result, err := await(r.Context(), done, h.timeout)
	if err == nil {
		err = result.err
	}
	if err != nil {
		sendAdapterError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, newAdResponse(handle))
}

// buildRequest fills the partner placement and default format from the catalog
func (h *AdHandler) buildRequest(ctx context.Context, body LoadRequest) (adapter.LoadRequest, error) {
	req := adapter.LoadRequest{
		LoadID:             body.LoadID,
		MediationPlacement: body.Placement,
		AdMarkup:           body.AdMarkup,
		Size:               body.Size,
	}
	if req.LoadID == "" {
		req.LoadID = uuid.NewString()
	}

	format := body.Format
	if h.catalog != nil {
		p, err := h.catalog.GetByMediationPlacement(ctx, body.Placement)
		if err != nil {
			return req, err
		}
		if p != nil {
			req.PartnerPlacement = p.PartnerPlacement
			if format == "" {
				format = p.Format
			}
			if req.Size == nil && p.BannerWidth != nil && p.BannerHeight != nil {
				req.Size = &adapter.Size{Width: *p.BannerWidth, Height: *p.BannerHeight}
			}
		}
	}

	f, err := adapter.ParseAdFormat(format)
	if err != nil {
		return req, err
	}
	req.Format = f
	return req, nil
}

// Get returns the current state of a handle
func (h *AdHandler) Get(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.lookup(r.PathValue("id"))
	if !ok {
		sendError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	}
	sendJSON(w, http.StatusOK, newAdResponse(ad))
}

// Show presents the ad and waits for the show result
func (h *AdHandler) Show(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.lookup(r.PathValue("id"))
	if !ok {
		sendError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	}

	done := make(chan error, 1)
	h.adapter.Show(r.Context(), ad, func(err error) {
		if err != nil {
			e := handleEvent(events.TypeShowFailed, ad)
			e.Error = err.Error()
			h.recorder.Record(e)
		} else {
			h.recorder.Record(handleEvent(events.TypeShow, ad))
		}
		done <- err
	})

	showErr, err := await(r.Context(), done, h.timeout)
	if err == nil {
		err = showErr
	}
	if err != nil {
		sendAdapterError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, newAdResponse(ad))
}

// Click simulates a banner tap
func (h *AdHandler) Click(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.lookup(r.PathValue("id"))
	if !ok {
		sendError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	}
	if err := h.adapter.Click(r.Context(), ad); err != nil {
		sendAdapterError(w, err)
		return
	}
	sendJSON(w, http.StatusAccepted, newAdResponse(ad))
}

// Invalidate releases the ad and forgets the handle
func (h *AdHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ad, ok := h.lookup(id)
	if !ok {
		sendError(w, http.StatusNotFound, "not_found", "Ad not found")
		return
	}

	done := make(chan error, 1)
	h.adapter.Invalidate(r.Context(), ad, func(err error) {
		done <- err
	})

	invErr, err := await(r.Context(), done, h.timeout)
	if err != nil {
		sendAdapterError(w, err)
		return
	}

	// A failed load leaves nothing to invalidate; the handle is still dropped
	h.forget(id)
	if invErr != nil {
		sendAdapterError(w, invErr)
		return
	}

	h.recorder.Record(handleEvent(events.TypeInvalidate, ad))
	w.WriteHeader(http.StatusNoContent)
}

// PlacementResponse describes the ad currently held by a placement
type PlacementResponse struct {
	Placement string      `json:"placement"`
	Ad        *AdResponse `json:"ad,omitempty"`
}

// Placement returns the handle registered for a mediation placement
func (h *AdHandler) Placement(w http.ResponseWriter, r *http.Request) {
	placement := r.PathValue("placement")
	resp := PlacementResponse{Placement: placement}
	if ad, ok := h.adapter.Registry().Handle(placement); ok {
		ar := newAdResponse(ad)
		resp.Ad = &ar
	}
	sendJSON(w, http.StatusOK, resp)
}

func (h *AdHandler) store(ad *adapter.AdHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handles[ad.ID] = ad
}

func (h *AdHandler) lookup(id string) (*adapter.AdHandle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ad, ok := h.handles[id]
	return ad, ok
}

func (h *AdHandler) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handles, id)
}

// Len returns the number of tracked handles
func (h *AdHandler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handles)
}
