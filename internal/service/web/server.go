package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cadverse/internal/shared"
	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/types"
)

const shutdownTimeout = 5 * time.Second

// loggingListener logs accepted connections at debug level.
type loggingListener struct {
	net.Listener
	log zerolog.Logger
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Connection accepted")
	}
	return conn, err
}

// basicAuthMiddleware 检查 web_user 和 web_password 是否已配置。
// 如果配置了，它将强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	// 如果用户名或密码未设置，则不启用认证，直接返回原始处理器
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux wires all routes. Resources, models, status and the WebSocket
// endpoints are public; the settings API sits behind basic auth when
// credentials are configured.
func NewMux(cfg types.ServerConf, handler *Handler, hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc(resourcePrefix, handler.HandleResource)
	mux.HandleFunc("/cadverse/interaction", hub.ServeWs)
	mux.HandleFunc("/ws", hub.ServeWs)
	mux.HandleFunc("/models", handler.HandleModels)
	mux.HandleFunc("/api/status", handler.HandleStatus)

	mux.Handle("/api/settings", basicAuthMiddleware(http.HandlerFunc(handler.HandleGetSettings), cfg.WebUser, cfg.WebPassword))
	mux.Handle(settingsPrefix, basicAuthMiddleware(http.HandlerFunc(handler.HandleUpdateSettings), cfg.WebUser, cfg.WebPassword))

	return mux
}

type Server struct {
	addr    string
	handler http.Handler
	traffic *shared.Traffic
	log     zerolog.Logger
}

func NewServer(cfg types.ServerConf, handler *Handler, hub *Hub) *Server {
	return &Server{
		addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		handler: NewMux(cfg, handler, hub),
		traffic: handler.status.Traffic(),
		log:     logger.WithComponent("WebServer"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run with a caller-supplied listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Msgf("SUCCESS: server is listening on http://%s", listener.Addr())
		counted := shared.CountListener(listener, s.traffic)
		errCh <- srv.Serve(loggingListener{Listener: counted, log: s.log})
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("Server shutdown incomplete")
		}
		<-errCh
		s.log.Info().Msg("Web server stopped.")
		return nil
	}
}
