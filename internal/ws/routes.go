package ws

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Router wires every endpoint. The web UI may be served from another origin,
// so all routes allow CORS.
func (s *State) Router() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/post", s.HandlePost).Methods(http.MethodPost)
	r.HandleFunc("/TargetPower", s.HandleTargetPower).Methods(http.MethodGet)
	r.HandleFunc("/CurrentRPM", s.HandleCurrentRPM).Methods(http.MethodGet)
	r.HandleFunc("/CanUpload", s.HandleCanUpload).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.HandleUpload).Methods(http.MethodPost)
	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/control", s.HandleControlWS)
	r.HandleFunc("/diag", s.HandleDiagWS)
	return cors.AllowAll().Handler(r)
}
