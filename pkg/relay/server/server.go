package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/classbot-dev/classbot/pkg/llm"
	"github.com/classbot-dev/classbot/pkg/persona"
	"github.com/classbot-dev/classbot/pkg/relay/config"
	"github.com/classbot-dev/classbot/pkg/relay/handlers"
	"github.com/classbot-dev/classbot/pkg/relay/metrics"
	"github.com/classbot-dev/classbot/pkg/relay/mw"
	"github.com/classbot-dev/classbot/pkg/speech"
)

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	metrics *metrics.Metrics

	completions *llm.Client
	speech      *speech.Client
}

func New(cfg config.Config, p persona.Persona, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		mux:         http.NewServeMux(),
		metrics:     metrics.New("classbot"),
		completions: llm.NewClientWithHTTP(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model, httpClient),
		speech: speech.NewClientWithHTTP(
			speech.ResolveEndpoint(cfg.SpeechRegion, cfg.SpeechEndpoint),
			cfg.SpeechKey,
			httpClient,
		),
	}

	s.routes(p)
	return s
}

func (s *Server) routes(p persona.Persona) {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/api/chat", handlers.ChatHandler{
		Config:      s.cfg,
		Persona:     p,
		Completions: s.completions,
		Logger:      s.logger,
		Metrics:     s.metrics,
	})
	s.mux.Handle("/api/speech-token", handlers.SpeechTokenHandler{
		Config:  s.cfg,
		Tokens:  s.speech,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	s.mux.Handle("/api/speaker-profiles", handlers.ProfilesHandler{
		Config:   s.cfg,
		Profiles: s.speech,
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
	s.mux.Handle("/api/debug-env", handlers.DebugEnvHandler{Config: s.cfg})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, s.metrics, h)
	h = mw.RequestID(h)
	return h
}
