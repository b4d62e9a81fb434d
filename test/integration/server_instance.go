package integration

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server/endpoints"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// portCounter is used to allocate unique ports for each test server
var portCounter int32 = 19000

// ServerConfig holds configuration for a test wiretap server instance
type ServerConfig struct {
	KeyID           string
	RequireVerified bool
}

// ServerInstance represents a running wiretap server for a single test
type ServerInstance struct {
	Server        *server.Server
	ServerURL     string
	Port          int
	Config        ServerConfig
	cancel        context.CancelFunc
	serverProcess *exec.Cmd // For binary mode
}

// StartServer creates and starts a new wiretap server instance decoding
// with the configured key. This supports both inline and binary modes
// based on how the test suite was started.
func StartServer(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	if tc.InlineMode {
		return startInlineServerInstance(tc, cfg)
	}
	return startBinaryServerInstance(tc, cfg)
}

// startInlineServerInstance starts an in-process server
func startInlineServerInstance(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	port := int(atomic.AddInt32(&portCounter, 1))

	wcfg := &config.WiretapConfig{
		Format:          "json",
		MaxMessageSize:  config.DefaultMaxMessageSize,
		KeyID:           cfg.KeyID,
		RequireVerified: cfg.RequireVerified,
	}
	inspector, err := wiretap.FromConfig(wcfg, tc.KeyStore)
	if err != nil {
		return nil, err
	}

	s := server.NewServer(inspector, wcfg, "127.0.0.1", fmt.Sprintf("%d", port))
	endpoints.RegisterAll(s)

	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", port, err)
	}

	instance := &ServerInstance{
		Server:    s,
		ServerURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:      port,
		Config:    cfg,
	}

	go func() {
		_ = s.StartWithListener(listener)
	}()

	if err := waitForServer(instance.ServerURL, 10*time.Second); err != nil {
		instance.Stop()
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return instance, nil
}

// startBinaryServerInstance starts a server using the wiretapctl binary
func startBinaryServerInstance(tc *TestContext, cfg ServerConfig) (*ServerInstance, error) {
	port := int(atomic.AddInt32(&portCounter, 1))
	portStr := fmt.Sprintf("%d", port)

	ctx, cancel := context.WithCancel(context.Background())

	args := []string{"server", "--no-migrate", "-b", "127.0.0.1", "-p", portStr, "--key-id", cfg.KeyID}
	if cfg.RequireVerified {
		args = append(args, "--require-verified")
	}

	cmd := exec.CommandContext(ctx, tc.BinaryPath, args...)
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+tc.DatabaseURL,
		"WIRETAP_DATA_KEY="+base64.StdEncoding.EncodeToString(tc.DataKey),
		"WIRETAP_AUDIT_ENABLED=false",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start binary: %w", err)
	}

	instance := &ServerInstance{
		ServerURL:     fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:          port,
		Config:        cfg,
		cancel:        cancel,
		serverProcess: cmd,
	}

	if err := waitForServer(instance.ServerURL, 30*time.Second); err != nil {
		instance.Stop()
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return instance, nil
}

// Stop shuts down the server instance
func (si *ServerInstance) Stop() {
	if si.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = si.Server.Shutdown(ctx)
		cancel()
	}
	if si.cancel != nil {
		si.cancel()
	}
	if si.serverProcess != nil && si.serverProcess.Process != nil {
		_ = si.serverProcess.Process.Kill()
		_ = si.serverProcess.Wait()
	}
}
