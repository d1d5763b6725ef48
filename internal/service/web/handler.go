package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"cadverse/internal/mesh"
	"cadverse/internal/shared/globalstate"
	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/settings"
	"cadverse/internal/sim"
)

const (
	resourcePrefix = "/cadverse/resources/"
	settingsPrefix = "/api/settings/"
)

type Handler struct {
	resourceDir     string
	settingsManager *settings.SettingsManager
	store           *sim.Store
	hub             *Hub
	status          *globalstate.StatusManager
	log             zerolog.Logger
}

func NewHandler(
	resourceDir string,
	settingsManager *settings.SettingsManager,
	store *sim.Store,
	hub *Hub,
	status *globalstate.StatusManager,
) *Handler {
	if status == nil {
		status = globalstate.GlobalStatus
	}
	return &Handler{
		resourceDir:     resourceDir,
		settingsManager: settingsManager,
		store:           store,
		hub:             hub,
		status:          status,
		log:             logger.WithComponent("Web"),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// resolveResource maps a request path below /cadverse/resources/ to a file in
// the resource directory. Anything that could leave the directory is refused.
func (h *Handler) resolveResource(urlPath string) (string, bool) {
	name := strings.TrimPrefix(urlPath, resourcePrefix)
	if name == "" || strings.Contains(name, "\\") || path.IsAbs(name) {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "" || part == "." {
			return "", false
		}
	}
	return filepath.Join(h.resourceDir, filepath.FromSlash(name)), true
}

// HandleResource 处理 GET /cadverse/resources/<file> 请求。
// OBJ 文件会按照 resources.scale 重新缩放顶点。
func (h *Handler) HandleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, ok := h.resolveResource(r.URL.Path)
	if !ok {
		h.log.Warn().Str("path", r.URL.Path).Msg("Rejected resource path")
		http.Error(w, "Invalid resource path", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.log.Error().Err(err).Str("file", file).Msg("Failed to read resource")
		http.Error(w, "Failed to read resource", http.StatusInternalServerError)
		return
	}

	scale := h.settingsManager.Get().Resources.Scale
	if strings.EqualFold(filepath.Ext(file), ".obj") && scale != 1 {
		data = []byte(mesh.RescaleOBJ(string(data), scale))
	}

	h.log.Debug().Str("file", file).Int("bytes", len(data)).Float64("scale", scale).Msg("Serving resource")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

// HandleModels 处理 GET /models 请求，返回当前所有模型状态。
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.store.Snapshot())
}

// HandleStatus 处理 GET /api/status 请求
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.status.Snapshot(h.hub.ClientCount()))
}

// HandleGetSettings 处理 GET /api/settings 请求
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.settingsManager.Get())
}

// HandleUpdateSettings 处理 POST /api/settings/{module} 请求
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	moduleKey := strings.TrimPrefix(r.URL.Path, settingsPrefix)
	if moduleKey == "" {
		http.Error(w, "Module key is missing in URL path", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	if err := h.settingsManager.Update(moduleKey, body); err != nil {
		switch {
		case errors.Is(err, settings.ErrUnknownModule):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, settings.ErrInvalidSettings):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Str("module", moduleKey).Msg("Failed to update settings")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]string{"message": "Settings updated successfully"})
}
