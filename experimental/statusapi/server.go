package statusapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	C "github.com/tradelog/tradelog/constant"
	"github.com/tradelog/tradelog/log"
	"github.com/tradelog/tradelog/option"

	"github.com/sagernet/sing/common"
	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/json"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Server exposes pipeline counters and the live diagnostics stream over
// HTTP.
type Server struct {
	logger     log.Logger
	pipeline   *log.Pipeline
	listen     string
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(ctx context.Context, logger log.Logger, pipeline *log.Pipeline, options option.StatusAPIOptions) (*Server, error) {
	if options.Listen == "" {
		return nil, E.New("status api requires listen address")
	}
	server := &Server{
		logger:   logger,
		pipeline: pipeline,
		listen:   options.Listen,
	}
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(authentication(options.Secret))
		r.Get("/", hello)
		r.Get("/version", version)
		r.Get("/stats", server.stats)
		r.Get("/sinks/{name}", server.sink)
		r.Get("/diagnostics", server.diagnostics)
	})
	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: C.StatusReadTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return server, nil
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return E.Cause(err, "status api listen on ", s.listen)
	}
	s.listener = listener
	s.logger.Info("Status API listening at {Address}", listener.Addr().String())
	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status API serve failed: {Error}", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Close() error {
	return common.Close(common.PtrOrNil(s.httpServer))
}

func authentication(serverSecret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if serverSecret == "" {
				next.ServeHTTP(w, r)
				return
			}
			bearer, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if bearer != "Bearer" || !found || token != serverSecret {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

func hello(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"hello": "tradelog"})
}

func version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, render.M{"version": C.Version})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.pipeline.Stats())
}

func (s *Server) sink(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, sink := range s.pipeline.Stats().Sinks {
		if sink.Name == name {
			render.JSON(w, r, sink)
			return
		}
	}
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrNotFound)
}

type diagnosticMessage struct {
	Time  time.Time `json:"time"`
	Sink  string    `json:"sink,omitempty"`
	Kind  string    `json:"kind"`
	Error string    `json:"error"`
}

// diagnostics streams one JSON document per diagnostic until the client
// goes away or the pipeline shuts down.
func (s *Server) diagnostics(w http.ResponseWriter, r *http.Request) {
	subscription, done, err := s.pipeline.Subscribe()
	if err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, newError("diagnostics stream unavailable: "+err.Error()))
		return
	}
	defer s.pipeline.UnSubscribe(subscription)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case diagnostic, loaded := <-subscription:
			if !loaded {
				return
			}
			message := diagnosticMessage{
				Time: diagnostic.Time,
				Sink: diagnostic.Sink,
				Kind: diagnostic.Kind.String(),
			}
			if diagnostic.Err != nil {
				message.Error = diagnostic.Err.Error()
			}
			if encoder.Encode(message) != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
