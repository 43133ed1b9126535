package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/version"
)

// handleFiles serves files below the document root. "/" maps to the
// artifact when it is an HTML document and to index.html otherwise. HTML is
// served with the reload client injected. Files are read on every request.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		if isHTML(s.artifact) {
			name = "/" + filepath.Base(s.artifact)
		} else {
			name = "/index.html"
		}
	}
	file := filepath.Join(s.root, filepath.FromSlash(name))

	content, err := os.ReadFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn(r.Context(), errors.NewIOError(errors.ErrCodeArtifactMissing, "read failed", err).WithPath(file), "Cannot serve file")
			http.Error(w, "Cannot read "+name, http.StatusInternalServerError)
			return
		}
		if file == s.artifact {
			http.Error(w, "No successful build yet. Fix the compiler errors and save to rebuild.", http.StatusServiceUnavailable)
			return
		}
		http.NotFound(w, r)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if isHTML(file) {
		content = InjectScript(content, ClientScriptTag)
		contentType = "text/html; charset=utf-8"
	}
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(content)
	}
}

func isHTML(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	return ext == ".html" || ext == ".htm"
}

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(clientScript)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(clientScript)
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		http.Error(w, "Status unavailable", http.StatusServiceUnavailable)
		return
	}
	templ.Handler(statusPage(s.opts.Status.Status())).ServeHTTP(w, r)
}

func (s *Server) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Status == nil {
		http.Error(w, "Status unavailable", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, r, http.StatusOK, s.opts.Status.Status())
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, artifactErr := os.Stat(s.artifact)
	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"artifact": map[string]interface{}{
			"path":   s.artifact,
			"exists": artifactErr == nil,
		},
	}

	s.writeJSON(w, r, http.StatusOK, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}
