package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps the standard library http.ServeMux. The API surface is small
// enough that a third-party router buys nothing.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler supports the http.Handler interface (websocket hub, pprof).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterControlRoutes wires the settings endpoints.
func (r *Router) RegisterControlRoutes(h *ControlHandler) {
	r.Handle("/api/control", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.GetControl(w, req)
		case http.MethodPost:
			h.PostControl(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/calibration", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.PostCalibration(w, req)
	})
}

// RegisterDataRoutes wires the telemetry read endpoints.
func (r *Router) RegisterDataRoutes(h *DataHandler) {
	r.Handle("/api/data", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetRecent(w, req)
	})

	r.Handle("/api/data/range", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetRange(w, req)
	})
}

// RegisterExportRoutes wires the range download endpoints.
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/api/export/csv/range", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CSVRange(w, req)
	})

	r.Handle("/api/export/xlsx/range", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.XLSXRange(w, req)
	})
}

// RegisterLiveRoutes wires the websocket endpoint browser clients attach to.
func (r *Router) RegisterLiveRoutes(hub http.Handler) {
	r.HandleHandler("/ws", hub)
}

func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
