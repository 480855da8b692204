package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register wires every route spec.md §6 defines under the "/diskuto"
// prefix, plus the legacy unprefixed "/u/" tree original_source's
// deprecated_api_routes kept serving after "/diskuto" was introduced.
func Register(r *mux.Router, a *App) {
	r.HandleFunc("/diskuto/homepage", a.handleHomepage).Methods(http.MethodGet)
	registerUserRoutes(r, a, "/diskuto/users/{user}")

	r.HandleFunc("/homepage", a.handleHomepage).Methods(http.MethodGet)
	registerUserRoutes(r, a, "/u/{user}")
}

func registerUserRoutes(r *mux.Router, a *App, prefix string) {
	r.HandleFunc(prefix+"/profile", a.handleGetProfile).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/items", a.handleUserItems).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/feed", a.handleUserFeed).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/items/{signature}", a.handleGetItem).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/items/{signature}", a.handlePutItem).Methods(http.MethodPut)
	r.HandleFunc(prefix+"/items/{signature}/replies", a.handleReplies).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/items/{signature}/files/{name}", a.handleGetAttachment).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/items/{signature}/files/{name}", a.handleHeadAttachment).Methods(http.MethodHead)
	r.HandleFunc(prefix+"/items/{signature}/files/{name}", a.handlePutAttachment).Methods(http.MethodPut)
}
