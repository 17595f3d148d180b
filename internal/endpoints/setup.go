package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/pkg/logger"
)

// CredentialSource loads and stores partner credentials
type CredentialSource interface {
	Get(ctx context.Context, partner string) (map[string]string, error)
	Put(ctx context.Context, partner string, creds map[string]string) error
}

// ConsentMetrics records privacy signals
type ConsentMetrics interface {
	RecordConsentSignal(signalType string, hasConsent bool)
}

// SetupHandler serves partner setup, bid token and privacy requests
type SetupHandler struct {
	adapter     *adapter.Adapter
	credentials CredentialSource
	metrics     ConsentMetrics
	timeout     time.Duration
}

// NewSetupHandler creates a setup handler. credentials and metrics may be nil.
func NewSetupHandler(a *adapter.Adapter, credentials CredentialSource, metrics ConsentMetrics) *SetupHandler {
	return &SetupHandler{
		adapter:     a,
		credentials: credentials,
		metrics:     metrics,
		timeout:     defaultCompletionTimeout,
	}
}

// RegisterRoutes registers the handler's routes on mux
func (h *SetupHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/setup", h.SetUp)
	mux.HandleFunc("GET /v1/bidder-info", h.BidderInfo)
	mux.HandleFunc("GET /v1/privacy", h.GetPrivacy)
	mux.HandleFunc("POST /v1/privacy", h.UpdatePrivacy)
}

// SetupRequest is the body of POST /v1/setup
type SetupRequest struct {
	Credentials map[string]string `json:"credentials,omitempty"`
}

// SetupResponse describes the initialized partner
type SetupResponse struct {
	Partner        string `json:"partner"`
	DisplayName    string `json:"display_name"`
	AdapterVersion string `json:"adapter_version"`
	SDKVersion     string `json:"sdk_version"`
	Ready          bool   `json:"ready"`
}

// SetUp initializes the partner. Credentials in the body are persisted;
// without them the stored credentials are used.
func (h *SetupHandler) SetUp(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := decodeBody(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	ctx := r.Context()
	partner := h.adapter.PartnerIdentifier()
	creds := req.Credentials

	if h.credentials != nil {
		if len(creds) > 0 {
			if err := h.credentials.Put(ctx, partner, creds); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to store partner credentials")
				sendError(w, http.StatusInternalServerError, "credential_store_error", "Failed to store credentials")
				return
			}
		} else {
			stored, err := h.credentials.Get(ctx, partner)
			if err != nil {
				logger.Log.Warn().Err(err).Msg("Failed to load stored credentials, continuing without")
			}
			creds = stored
		}
	}

	done := make(chan error, 1)
	h.adapter.SetUp(ctx, adapter.PartnerConfiguration{Credentials: creds}, func(err error) {
		done <- err
	})

	setupErr, err := await(ctx, done, h.timeout)
	if err == nil {
		err = setupErr
	}
	if err != nil {
		sendAdapterError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, SetupResponse{
		Partner:        partner,
		DisplayName:    h.adapter.PartnerDisplayName(),
		AdapterVersion: h.adapter.AdapterVersion(),
		SDKVersion:     h.adapter.PartnerSDKVersion(),
		Ready:          h.adapter.IsSetUp(),
	})
}

// BidderInfo returns the partner bid token for ?placement=&format=
func (h *SetupHandler) BidderInfo(w http.ResponseWriter, r *http.Request) {
	req := adapter.PreBidRequest{MediationPlacement: r.URL.Query().Get("placement")}
	if f := r.URL.Query().Get("format"); f != "" {
		format, err := adapter.ParseAdFormat(f)
		if err != nil {
			sendAdapterError(w, err)
			return
		}
		req.Format = format
	}

	done := make(chan map[string]string, 1)
	h.adapter.FetchBidderInfo(r.Context(), req, func(info map[string]string) {
		done <- info
	})

	info, err := await(r.Context(), done, h.timeout)
	if err != nil {
		sendAdapterError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, info)
}

// GDPRSignal carries GDPR applicability and consent
type GDPRSignal struct {
	Applies bool                      `json:"applies"`
	Consent adapter.GDPRConsentStatus `json:"consent"`
}

// CCPASignal carries CCPA consent and the US privacy string
type CCPASignal struct {
	Consent       bool   `json:"consent"`
	PrivacyString string `json:"privacy_string"`
}

// PrivacyRequest is the body of POST /v1/privacy; omitted fields are left unchanged
type PrivacyRequest struct {
	GDPR  *GDPRSignal `json:"gdpr,omitempty"`
	COPPA *bool       `json:"coppa,omitempty"`
	CCPA  *CCPASignal `json:"ccpa,omitempty"`
	GPP   *string     `json:"gpp,omitempty"`
}

// GetPrivacy returns the privacy signals last propagated to the partner
func (h *SetupHandler) GetPrivacy(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, h.adapter.Privacy())
}

// UpdatePrivacy applies consent signals
func (h *SetupHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	var req PrivacyRequest
	if err := decodeBody(r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return
	}

	if req.GDPR != nil {
		consent := req.GDPR.Consent
		switch consent {
		case "":
			consent = adapter.GDPRConsentUnknown
		case adapter.GDPRConsentUnknown, adapter.GDPRConsentDenied, adapter.GDPRConsentGranted:
		default:
			sendError(w, http.StatusBadRequest, "invalid_consent", "GDPR consent must be unknown, denied or granted")
			return
		}
		h.adapter.SetGDPR(req.GDPR.Applies, consent)
		h.recordConsent("gdpr", consent == adapter.GDPRConsentGranted)
	}
	if req.COPPA != nil {
		h.adapter.SetCOPPA(*req.COPPA)
		h.recordConsent("coppa", !*req.COPPA)
	}
	if req.CCPA != nil {
		h.adapter.SetCCPA(req.CCPA.Consent, req.CCPA.PrivacyString)
		h.recordConsent("ccpa", req.CCPA.Consent)
	}
	if req.GPP != nil {
		h.adapter.SetGPP(*req.GPP)
		h.recordConsent("gpp", *req.GPP != "")
	}

	sendJSON(w, http.StatusOK, h.adapter.Privacy())
}

func (h *SetupHandler) recordConsent(signalType string, hasConsent bool) {
	if h.metrics != nil {
		h.metrics.RecordConsentSignal(signalType, hasConsent)
	}
}
