package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server/middleware"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

type Server struct {
	Inspector *wiretap.Inspector
	Config    *config.WiretapConfig
	Router    *mux.Router
	srv       *http.Server
}

func NewServer(
	inspector *wiretap.Inspector,
	cfg *config.WiretapConfig,
	host string,
	port string,
) *Server {

	router := mux.NewRouter().UseEncodedPath()
	router.Use(middleware.RequestID)
	if cfg.APITokenSecret != "" {
		router.Use(middleware.NewBearerAuthenticator([]byte(cfg.APITokenSecret), cfg.APITokenIssuer).Middleware)
	}

	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, router),
		Addr:         host + ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Inspector: inspector,
		Config:    cfg,
		Router:    router,
		srv:       srv,
	}
}

func (s *Server) Addr() string {
	return s.srv.Addr
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) StartWithListener(l net.Listener) error {
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
