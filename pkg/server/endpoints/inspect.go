package endpoints

import (
	"io"
	"net/http"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server/middleware"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// RegisterInspectEndpoints registers the token decoding endpoints
func RegisterInspectEndpoints(s *server.Server) {
	inspector := s.Inspector
	limit := int64(s.Config.MaxMessageSize)

	// POST /inspect - decode every token of a message header
	s.Router.HandleFunc("/inspect", handleInspect(inspector, limit)).Methods("POST")

	// POST /mastertoken - decode one master token envelope
	s.Router.HandleFunc("/mastertoken", handleMasterToken(inspector, limit)).Methods("POST")

	// POST /useridtoken - decode {"mastertoken": ..., "useridtoken": ...}
	s.Router.HandleFunc("/useridtoken", handleUserIDToken(inspector, limit)).Methods("POST")
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	return io.ReadAll(r.Body)
}

func origin(r *http.Request) wiretap.Origin {
	return wiretap.Origin{
		RequestID: middleware.RequestIDFrom(r.Context()),
		ClientIP:  clientIP(r),
		Source:    "http",
	}
}

func handleInspect(inspector *wiretap.Inspector, limit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readBody(w, r, limit)
		if err != nil {
			respondWithInspectError(w, err)
			return
		}

		report, err := inspector.Inspect(data, origin(r))
		if err != nil {
			respondWithInspectError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, report)
	}
}

func handleMasterToken(inspector *wiretap.Inspector, limit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readBody(w, r, limit)
		if err != nil {
			respondWithInspectError(w, err)
			return
		}

		mt, err := inspector.MasterToken(data, origin(r))
		if err != nil {
			respondWithInspectError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, mt)
	}
}

func handleUserIDToken(inspector *wiretap.Inspector, limit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readBody(w, r, limit)
		if err != nil {
			respondWithInspectError(w, err)
			return
		}

		uit, err := inspector.UserIDToken(data, origin(r))
		if err != nil {
			respondWithInspectError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, uit)
	}
}
