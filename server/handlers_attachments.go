package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"diskuto/ingest"
	"diskuto/internal/apperr"
)

func (a *App) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
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
	name := mux.Vars(r)["name"]

	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	immutableETag(func(w http.ResponseWriter, r *http.Request) {
		stream, err := be.GetContents(r.Context(), user, sig, name)
		if err != nil {
			writeError(w, err)
			return
		}
		defer stream.Reader.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatUint(stream.Size, 10))
		buf := make([]byte, 32*1024)
		for {
			n, rerr := stream.Reader.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
			}
			if rerr != nil {
				return
			}
		}
	})(w, r)
}

func (a *App) handleHeadAttachment(w http.ResponseWriter, r *http.Request) {
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
	name := mux.Vars(r)["name"]

	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	meta, found, err := be.GetAttachmentMeta(r.Context(), user, sig, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found || !meta.Exists {
		writeError(w, apperr.New(apperr.KindNotFound, "attachment not found"))
		return
	}
	w.Header().Set("Content-Length", strconv.FormatUint(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
}

func (a *App) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
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
	name := mux.Vars(r)["name"]

	be, err := a.Factory.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defer be.Close()

	if err := ingest.SubmitAttachment(r.Context(), be, user, sig, name, r.Body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
