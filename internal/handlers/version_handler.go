package handlers

import (
	"net/http"
	"runtime"
)

// Build information, set with -ldflags "-X .../internal/handlers.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionResponse describes the running build
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// VersionInfo returns the build of the running server
// @Summary Server version
// @Tags health
// @Produce json
// @Success 200 {object} handlers.VersionResponse
// @Router /api/version [get]
func VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	})
}
