package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docassist/internal/pkg/response"
)

// StaticSite serves the documentation portal mirror. Unknown paths fall back
// to index.html so the portal's client-side routing keeps working.
func StaticSite(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			response.Error(c, http.StatusNotFound, "not_found", "not found")
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			response.Error(c, http.StatusNotFound, "not_found", "not found")
			return
		}
		// path.Clean keeps the resolved path anchored under dir.
		clean := path.Clean("/" + c.Request.URL.Path)
		full := filepath.Join(dir, filepath.FromSlash(clean))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			c.File(full)
			return
		}
		c.File(index)
	}
}
