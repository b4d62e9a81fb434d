package endpoints

import (
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
)

// RegisterAll registers every endpoint on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoints(srv)
	RegisterInspectEndpoints(srv)
}
