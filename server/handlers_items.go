package server

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"diskuto/crypto"
	"diskuto/ingest"
	"diskuto/internal/apperr"
)

func pathUser(r *http.Request) (crypto.UserID, error) {
	return crypto.UserIDFromBase58(mux.Vars(r)["user"])
}

func pathSig(r *http.Request) (crypto.Signature, error) {
	return crypto.SignatureFromBase58(mux.Vars(r)["signature"])
}

// handlePutItem accepts a signed item's raw bytes as the request body and
// runs it through ingest.SubmitItem.
func (a *App) handlePutItem(w http.ResponseWriter, r *http.Request) {
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
	body, err := io.ReadAll(io.LimitReader(r.Body, maxItemSizePlusOne))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, "reading request body", err))
		return
	}

	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	if err := ingest.SubmitItem(r.Context(), be, user, sig, body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// maxItemSizePlusOne bounds the read so an oversized body is detected
// without buffering an unbounded upload; +1 lets ingest.SubmitItem's own
// size check see that the limit was exceeded rather than silently
// truncating.
const maxItemSizePlusOne = 32*1024 + 1

func (a *App) handleGetItem(w http.ResponseWriter, r *http.Request) {
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

	immutableETag(func(w http.ResponseWriter, r *http.Request) {
		row, found, err := be.UserItem(r.Context(), user, sig)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, apperr.New(apperr.KindNotFound, "item not found"))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(row.ItemBytes)
	})(w, r)
}

func (a *App) handleGetProfile(w http.ResponseWriter, r *http.Request) {
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

	row, found, err := be.UserProfile(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, apperr.New(apperr.KindNotFound, "profile not found"))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(row.ItemBytes)
}
