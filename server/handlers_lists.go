package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"diskuto/internal/apperr"
	"diskuto/query"
)

func parseParams(r *http.Request) query.Params {
	q := r.URL.Query()
	p := query.Params{}
	if v := q.Get("before"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.Before = &n
		}
	}
	if v := q.Get("after"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.After = &n
		}
	}
	if v := q.Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < query.MinCount {
				n = query.MinCount
			}
			p.Count = n
		}
	}
	return p
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) handleHomepage(w http.ResponseWriter, r *http.Request) {
	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	page, err := query.Homepage(r.Context(), be, parseParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]itemDisplayDTO, len(page.Items))
	for i, it := range page.Items {
		items[i] = toItemDisplayDTO(it)
	}
	writeJSON(w, pageDTO[itemDisplayDTO]{Items: items, HasMore: page.HasMore})
}

func (a *App) handleUserItems(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid user id", err))
		return
	}
	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	page, err := query.UserTimeline(r.Context(), be, user, parseParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]itemDTO, len(page.Items))
	for i, it := range page.Items {
		items[i] = toItemDTO(it)
	}
	writeJSON(w, pageDTO[itemDTO]{Items: items, HasMore: page.HasMore})
}

func (a *App) handleUserFeed(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid user id", err))
		return
	}
	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	page, err := query.UserFeed(r.Context(), be, user, parseParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]itemDisplayDTO, len(page.Items))
	for i, it := range page.Items {
		items[i] = toItemDisplayDTO(it)
	}
	writeJSON(w, pageDTO[itemDisplayDTO]{Items: items, HasMore: page.HasMore})
}

func (a *App) handleReplies(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid user id", err))
		return
	}
	sig, err := pathSig(r)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid signature", err))
		return
	}
	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	page, err := query.Replies(r.Context(), be, user, sig, parseParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]itemDTO, len(page.Items))
	for i, it := range page.Items {
		items[i] = toItemDTO(it)
	}
	writeJSON(w, pageDTO[itemDTO]{Items: items, HasMore: page.HasMore})
}
