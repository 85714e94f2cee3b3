package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/marketplace"
	"xdao.co/gridstore/model"
	"xdao.co/gridstore/pointer"
)

const maxBody = 64 << 10

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", zap.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce := model.FromError(err)
	status := ce.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("code", string(ce.Code)),
			zap.Error(err))
	}
	h.writeJSON(w, status, ce)
}

func (h *handler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewError(model.ErrInvalidRequest, "invalid json body: "+err.Error())
	}
	return nil
}

func (h *handler) networkOf(r *http.Request) (chain.Network, error) {
	s := r.URL.Query().Get("network")
	if s == "" {
		return h.network, nil
	}
	return chain.Lookup(s)
}

func (h *handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	ts, err := h.svc.Templates(r.Context(), n, catalog.Query{
		Category: catalog.Category(q.Get("category")),
		Search:   q.Get("q"),
		Tag:      q.Get("tag"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.TemplateList{
		Templates: model.FromTemplates(ts),
		Featured:  model.FromTemplates(h.svc.Catalog().Featured(3)),
	})
}

func (h *handler) template(w http.ResponseWriter, r *http.Request) (catalog.Template, bool) {
	t, err := h.svc.Template(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return t, false
	}
	return t, true
}

func (h *handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	if t, ok := h.template(w, r); ok {
		h.writeJSON(w, http.StatusOK, model.FromTemplate(t))
	}
}

func (h *handler) previewTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.template(w, r)
	if !ok {
		return
	}
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pv, err := h.svc.Preview(r.Context(), t, n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.FromPreview(pv, h.svc.Resolver().URL))
}

func (h *handler) plan(w http.ResponseWriter, r *http.Request, profile string) (*marketplace.ApplyPlan, bool) {
	t, ok := h.template(w, r)
	if !ok {
		return nil, false
	}
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	addr, err := marketplace.ParseAddress(profile)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	plan, err := h.svc.PrepareApply(r.Context(), t, addr, n)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return plan, true
}

func (h *handler) planApply(w http.ResponseWriter, r *http.Request) {
	if plan, ok := h.plan(w, r, r.URL.Query().Get("profile")); ok {
		h.writeJSON(w, http.StatusOK, model.FromPlan(plan))
	}
}

type applyRequest struct {
	Profile  string `json:"profile"`
	SignedTx string `json:"signedTx"`
}

type applyResponse struct {
	Plan        model.ApplyPlan `json:"plan"`
	Tx          string          `json:"tx"`
	ExplorerURL string          `json:"explorerUrl"`
}

// submitApply broadcasts a transaction the caller signed over the calldata
// from GET apply. It answers once the transaction is accepted, not mined.
func (h *handler) submitApply(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusNotImplemented, model.NewError(model.ErrInvalidRequest, "submission is disabled; sign the calldata and broadcast it yourself"))
		return
	}
	var req applyRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := chain.DecodeSignedTx(req.SignedTx)
	if err != nil {
		h.writeError(w, r, model.NewError(model.ErrInvalidRequest, err.Error()))
		return
	}
	plan, ok := h.plan(w, r, req.Profile)
	if !ok {
		return
	}
	pw, err := h.svc.Apply(r.Context(), plan, chain.Presigned{Store: h.store, Tx: tx})
	if err != nil {
		if errors.Is(err, chain.ErrTxMismatch) {
			err = model.NewError(model.ErrInvalidRequest, err.Error())
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, applyResponse{
		Plan:        model.FromPlan(plan),
		Tx:          pw.Tx.Hex(),
		ExplorerURL: pw.ExplorerURL(),
	})
}

func (h *handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.FromCategories(h.svc.Catalog().Categories()))
}

func (h *handler) listTags(w http.ResponseWriter, r *http.Request) {
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tags, byAddr, err := h.svc.CommunityTags(r.Context(), n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	h.writeJSON(w, http.StatusOK, model.Tags{Tags: tags, ByProfile: byAddr})
}

func (h *handler) searchProfile(w http.ResponseWriter, r *http.Request) {
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, p, err := h.svc.SearchProfile(r.Context(), chi.URLParam(r, "address"), n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Template model.Template `json:"template"`
		Profile  model.Profile  `json:"profile"`
	}{model.FromTemplate(t), model.FromProfile(p)})
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	addr, err := marketplace.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.svc.Profile(r.Context(), addr, n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.FromProfile(p))
}

func (h *handler) getProfileGrid(w http.ResponseWriter, r *http.Request) {
	n, err := h.networkOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	addr, err := marketplace.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, entry, err := h.svc.ProfileGrid(r.Context(), addr, n)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.FromProfileGrid(addr, n, raw, entry, h.svc.Resolver().URL))
}

func (h *handler) encodePointer(w http.ResponseWriter, r *http.Request) {
	var req model.EncodeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Locator) == "" {
		h.writeError(w, r, model.NewError(model.ErrInvalidRequest, "locator is required"))
		return
	}
	var hash []byte
	if req.Hash != "" {
		var err error
		if hash, err = pointer.ParseHash(req.Hash); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	value, err := pointer.Encode(req.Locator, hash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := pointer.Decode(value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.EncodeResponse{
		Value:   model.Hex(value),
		Pointer: model.FromPointer(p, h.svc.Resolver().URL),
	})
}

func (h *handler) decodePointer(w http.ResponseWriter, r *http.Request) {
	var req model.DecodeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := pointer.DecodeHex(req.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.FromPointer(p, h.svc.Resolver().URL))
}
