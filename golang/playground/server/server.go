//Package server exposes a playground session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tarstars/nn_playground/golang/playground/render"
	"github.com/tarstars/nn_playground/golang/playground/shell"
)

//StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status     string  `json:"status"`
	Running    bool    `json:"running"`
	Epoch      int     `json:"epoch"`
	Loss       float64 `json:"loss"`
	Metric     float64 `json:"metric"`
	MetricName string  `json:"metric_name"`
}

//RunningResponse is the body of POST /train.
type RunningResponse struct {
	Running bool `json:"running"`
}

//LayerRequest is the body of PUT /layers/{idx}.
type LayerRequest struct {
	Units int `json:"units"`
}

//Server exposes one playground session over HTTP.
type Server struct {
	shell  *shell.Shell
	logger *zap.SugaredLogger
}

//New creates a server for sh.
func New(sh *shell.Shell, logger *zap.SugaredLogger) *Server {
	return &Server{shell: sh, logger: logger}
}

//Router wires every route of the playground.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/settings", s.HandleGetSettings).Methods("GET")
	r.HandleFunc("/settings", s.HandlePutSettings).Methods("PUT")
	r.HandleFunc("/train", s.HandleTrain).Methods("POST")
	r.HandleFunc("/reset", s.HandleReset).Methods("POST")
	r.HandleFunc("/regenerate", s.HandleRegenerate).Methods("POST")
	r.HandleFunc("/layers", s.HandleAddLayer).Methods("POST")
	r.HandleFunc("/layers/{idx:[0-9]+}", s.HandleRemoveLayer).Methods("DELETE")
	r.HandleFunc("/layers/{idx:[0-9]+}", s.HandleSetLayer).Methods("PUT")
	r.HandleFunc("/status", s.HandleStatus).Methods("GET")
	r.HandleFunc("/frame.png", s.HandleFrame).Methods("GET")
	r.HandleFunc("/topology.svg", s.HandleTopology).Methods("GET")
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("error marshaling JSON: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf)
}

//fail maps configuration errors to 400 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var configErr *shell.ConfigurationError
	if errors.As(err, &configErr) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

//HandleGetSettings returns the current settings.
func (s *Server) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.shell.Settings())
}

//HandlePutSettings overlays the JSON body on the settings and returns the result.
func (s *Server) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.shell.Patch(body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, s.shell.Settings())
}

//HandleTrain toggles training.
func (s *Server) HandleTrain(w http.ResponseWriter, r *http.Request) {
	running, err := s.shell.ToggleRunning()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, RunningResponse{Running: running})
}

//HandleReset stops training and reinitializes the model.
func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.ResetModel(); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, s.shell.Settings())
}

//HandleRegenerate draws a new sample set.
func (s *Server) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.Regenerate(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

//HandleAddLayer appends a hidden layer and returns the layer widths.
func (s *Server) HandleAddLayer(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.AddLayer(); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, s.shell.Settings().Layers)
}

func layerIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		return 0, &shell.ConfigurationError{Option: "layer index", Value: mux.Vars(r)["idx"]}
	}
	return idx, nil
}

//HandleRemoveLayer drops the hidden layer {idx} and returns the layer widths.
func (s *Server) HandleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	idx, err := layerIndex(r)
	if err == nil {
		err = s.shell.RemoveLayer(idx)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, s.shell.Settings().Layers)
}

//HandleSetLayer resizes the hidden layer {idx} and returns the layer widths.
func (s *Server) HandleSetLayer(w http.ResponseWriter, r *http.Request) {
	idx, err := layerIndex(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req LayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.shell.SetLayerUnits(idx, req.Units); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, s.shell.Settings().Layers)
}

//HandleStatus reports the status line and the training state.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	progress := s.shell.Progress()
	s.writeJSON(w, StatusResponse{
		Status:     s.shell.Status(),
		Running:    s.shell.Settings().Running,
		Epoch:      progress.Epoch,
		Loss:       progress.Loss,
		Metric:     progress.Metric,
		MetricName: progress.MetricName,
	})
}

//HandleFrame renders the session as a PNG.
func (s *Server) HandleFrame(w http.ResponseWriter, r *http.Request) {
	settings := s.shell.Settings()
	canvas := render.NewGGCanvas(settings.Width, settings.Height)
	if err := s.shell.Render(canvas); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := canvas.EncodePNG(w); err != nil {
		s.logger.Warnw("could not write frame", "error", err)
	}
}

//HandleTopology renders the network graph as SVG.
func (s *Server) HandleTopology(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := s.shell.RenderTopology(w, "svg"); err != nil {
		s.fail(w, r, err)
	}
}

//ListenAndServe serves until ctx is done, then shuts the listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		s.logger.Infow("serving playground", "addr", addr)
		served <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	if serveErr := <-served; serveErr != http.ErrServerClosed {
		err = multierr.Append(err, serveErr)
	}
	return err
}
