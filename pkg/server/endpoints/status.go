package endpoints

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
)

// StatusResponse is the JSON form of the status page
type StatusResponse struct {
	Version         string `json:"version"`
	Format          string `json:"format"`
	KeyID           string `json:"key_id"`
	RequireVerified bool   `json:"require_verified"`
}

// RegisterStatusEndpoints registers the status page
func RegisterStatusEndpoints(s *server.Server) {
	// GET / - Status page (no auth required)
	s.Router.HandleFunc("/", handleStatus(s.Config)).Methods("GET")
}

func version() string {
	if v := os.Getenv("WIRETAP_VERSION"); v != "" {
		return v
	}
	return "0.1.0"
}

const statusTemplate = `# msl-wiretap

Your token inspection service is running!

| Setting | Value |
|---|---|
| Version | %s |
| Format | %s |
| Key | %s |
| Require verified | %t |

## Endpoints

- ` + "`POST /inspect`" + ` decodes the tokens of a message header
- ` + "`POST /mastertoken`" + ` decodes a master token
- ` + "`POST /useridtoken`" + ` decodes a user ID token with its master token
`

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func renderStatus(status StatusResponse) ([]byte, error) {
	source := fmt.Sprintf(statusTemplate, status.Version, status.Format, status.KeyID, status.RequireVerified)

	var body bytes.Buffer
	body.WriteString("<!DOCTYPE html>\n<html>\n  <head>\n    <meta charset=\"utf-8\">\n    <title>msl-wiretap status</title>\n  </head>\n  <body>\n")
	if err := markdown.Convert([]byte(source), &body); err != nil {
		return nil, err
	}
	body.WriteString("  </body>\n</html>\n")
	return body.Bytes(), nil
}

func handleStatus(cfg *config.WiretapConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := StatusResponse{
			Version:         version(),
			Format:          cfg.Format,
			KeyID:           cfg.KeyID,
			RequireVerified: cfg.RequireVerified,
		}

		// Check if JSON is requested via Accept header or format query param
		accept := r.Header.Get("Accept")
		format := r.URL.Query().Get("format")
		if format == "json" || strings.Contains(accept, "application/json") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status)
			return
		}

		html, err := renderStatus(status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
	}
}
