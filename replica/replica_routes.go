package replica

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/launchdarkly/ld-sync/internal/datakinds"
	"github.com/launchdarkly/ld-sync/internal/logging"
	"github.com/launchdarkly/ld-sync/internal/metrics"
	st "github.com/launchdarkly/ld-sync/internal/storetypes"
)

// makeRouter creates the routes for inspecting the replica:
//
//	GET  /status       overall health, data source state, and store details
//	GET  /flags        every flag, as an object keyed by flag key
//	GET  /flags/{key}  one flag, or 404
//	POST /summary      the evaluation summary since the last call, which is then reset
func (r *Replica) makeRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(logging.GlobalContextLoggersMiddleware(r.loggers))
	router.Use(logging.RequestLoggerMiddleware)
	router.Use(metrics.RequestCountMiddleware(r.metricsManager.OpenCensusContext()))

	router.Handle("/status", statusHandler(r)).Methods("GET")
	router.HandleFunc("/flags", r.allFlagsHandler).Methods("GET")
	router.HandleFunc("/flags/{key}", r.flagHandler).Methods("GET")
	router.HandleFunc("/summary", r.summaryHandler).Methods("POST")
	return router
}

func (r *Replica) flagHandler(w http.ResponseWriter, req *http.Request) {
	key := mux.Vars(req)["key"]
	flag, found, err := r.GetFlag(key)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, datakinds.Features.Encode(key, st.ItemDescriptor{Version: flag.Version, Item: &flag}))
}

func (r *Replica) allFlagsHandler(w http.ResponseWriter, req *http.Request) {
	flags, err := r.AllFlags()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	jw := jwriter.NewWriter()
	obj := jw.Object()
	for i := range flags {
		flag := flags[i]
		obj.Name(flag.Key).Raw(datakinds.Features.Encode(flag.Key, st.ItemDescriptor{Version: flag.Version, Item: &flag}))
	}
	obj.End()
	writeJSON(w, jw.Bytes())
}

func (r *Replica) summaryHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, r.Summary())
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type errorJSON struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	data, _ := json.Marshal(errorJSON{Message: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
