package endpoints

import (
	"context"
	"net/http"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/storage"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// PlacementCatalog manages placement mappings
type PlacementCatalog interface {
	PlacementLookup
	List(ctx context.Context) ([]*storage.Placement, error)
	Upsert(ctx context.Context, p *storage.Placement) error
	Delete(ctx context.Context, mediationPlacement string) error
}

// CatalogHandler handles placement mapping CRUD operations
type CatalogHandler struct {
	catalog PlacementCatalog
}

// NewCatalogHandler creates a catalog handler. catalog may be nil when no
// database is configured; every route then answers 503.
func NewCatalogHandler(catalog PlacementCatalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// RegisterRoutes registers the handler's routes on mux
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/catalog", h.List)
	mux.HandleFunc("GET /v1/catalog/{placement}", h.Get)
	mux.HandleFunc("PUT /v1/catalog/{placement}", h.Put)
	mux.HandleFunc("DELETE /v1/catalog/{placement}", h.Delete)
}

// CatalogListResponse is the response for listing placements
type CatalogListResponse struct {
	Placements []*storage.Placement `json:"placements"`
	Count      int                  `json:"count"`
}

// PlacementRequest is the body of PUT /v1/catalog/{placement}
type PlacementRequest struct {
	PartnerPlacement string `json:"partner_placement"`
	Format           string `json:"format"`
	BannerWidth      *int   `json:"banner_width,omitempty"`
	BannerHeight     *int   `json:"banner_height,omitempty"`
}

func (h *CatalogHandler) available(w http.ResponseWriter) bool {
	if h.catalog == nil {
		sendError(w, http.StatusServiceUnavailable, "catalog_unavailable", "Placement catalog requires a database connection")
		return false
	}
	return true
}

// List returns all active placements
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	placements, err := h.catalog.List(r.Context())
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list placements")
		sendError(w, http.StatusInternalServerError, "catalog_error", "Failed to retrieve placements")
		return
	}
	sendJSON(w, http.StatusOK, CatalogListResponse{Placements: placements, Count: len(placements)})
}

// Get returns one placement mapping
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	p, err := h.catalog.GetByMediationPlacement(r.Context(), r.PathValue("placement"))
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to get placement")
		sendError(w, http.StatusInternalServerError, "catalog_error", "Failed to retrieve placement")
		return
	}
	if p == nil {
		sendError(w, http.StatusNotFound, "not_found", "Placement not found")
		return
	}
	sendJSON(w, http.StatusOK, p)
}

// Put creates or replaces a placement mapping
func (h *CatalogHandler) Put(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req PlacementRequest
	if err := decodeBody(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}
	if req.PartnerPlacement == "" {
		sendError(w, http.StatusBadRequest, "missing_partner_placement", "partner_placement is required")
		return
	}
	format, err := adapter.ParseAdFormat(req.Format)
	if err != nil {
		sendAdapterError(w, err)
		return
	}

	p := &storage.Placement{
		MediationPlacement: r.PathValue("placement"),
		PartnerPlacement:   req.PartnerPlacement,
		Format:             string(format),
		BannerWidth:        req.BannerWidth,
		BannerHeight:       req.BannerHeight,
	}
	if err := h.catalog.Upsert(r.Context(), p); err != nil {
		logger.Log.Error().Err(err).Str("placement", p.MediationPlacement).Msg("Failed to store placement")
		sendError(w, http.StatusInternalServerError, "catalog_error", "Failed to store placement")
		return
	}

	logger.Log.Info().
		Str("placement", p.MediationPlacement).
		Str("partner_placement", p.PartnerPlacement).
		Str("format", p.Format).
		Msg("Placement mapping stored")
	sendJSON(w, http.StatusOK, p)
}

// Delete archives a placement mapping
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	placement := r.PathValue("placement")
	if err := h.catalog.Delete(r.Context(), placement); err != nil {
		logger.Log.Warn().Err(err).Str("placement", placement).Msg("Failed to delete placement")
		sendError(w, http.StatusNotFound, "not_found", "Placement not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
