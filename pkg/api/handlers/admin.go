package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"inboxd/pkg/store"
	"inboxd/pkg/utils"
)

// Statser is the slice of the store the admin surface needs.
type Statser interface {
	CountStats() (store.Stats, error)
	Ready() bool
}

// RegisterAdmin registers the operational stats route.
func RegisterAdmin(r *mux.Router, st Statser) {
	r.HandleFunc("/admin/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.CountStats()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, stats)
	}).Methods(http.MethodGet)
}
