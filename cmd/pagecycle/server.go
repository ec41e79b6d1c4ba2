package main

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pagecycle/pagecycle"
	"github.com/pagecycle/pagecycle/buffer"
	"github.com/pagecycle/pagecycle/session"
	"github.com/pagecycle/pagecycle/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Server mounts the configured pages on a router and runs every request
// through the response-strategy engine.
type Server struct {
	store    store.Store
	settings pagecycle.Settings
	router   chi.Router

	// instantiated tracks which sessions hold a live instance of which page.
	instantiated sync.Map
}

type page struct {
	path      string
	body      string
	stateless bool
	policy    pagecycle.RedirectPolicy
}

func NewServer(config pagecycle.Config, st store.Store) (*Server, error) {
	settings, err := config.Settings()
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:    st,
		settings: settings,
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.MethodHandler("method"))
	r.Use(hlog.URLHandler("url"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().Int("status", status).Dur("duration", duration).Msg("Request served")
	}))

	for _, pc := range config.Pages {
		policy, err := pagecycle.ParsePolicy(pc.Policy)
		if err != nil {
			return nil, err
		}
		pg := &page{
			path:      pc.Path,
			body:      pc.Body,
			stateless: pc.Stateless,
			policy:    policy,
		}
		r.Get(pg.path, s.handlePage(pg))
	}
	s.router = r

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handlePage builds the request cycle for the page and lets the engine pick
// the response strategy.
func (s *Server) handlePage(pg *page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.Resolve(w, r)

		// the canonical URL is the mount path; the current URL is whatever
		// the client actually requested
		target := &url.URL{Path: pg.path}
		current := &url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}

		engine := pagecycle.NewEngine(store.Scoped(s.store, sess.ID()), s.settings)
		cycle := &pagecycle.RequestCycle{
			Request:    requestFacts{r},
			Provider:   pageProvider{srv: s, pg: pg, sess: sess},
			Session:    sess,
			Response:   httpSink{w: w, r: r},
			Renderer:   pageRenderer{srv: s, pg: pg, sess: sess},
			TargetURL:  target,
			CurrentURL: current,
			Policy:     pg.policy,
		}

		if err := engine.Respond(cycle); err != nil {
			getLogger(r).Error().Err(err).Str("path", pg.path).Msg("Could not respond")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}
}

// sweepLoop evicts orphaned buffered responses whose client never followed
// the redirect.
func (s *Server) sweepLoop(interval time.Duration) {
	for {
		time.Sleep(interval)
		evicted, err := s.store.Sweep()
		if err != nil {
			log.Error().Err(err).Msg("Could not sweep buffered-response store")
			continue
		}
		if evicted > 0 {
			log.Debug().Int("evicted", evicted).Msg("Evicted orphaned buffered responses")
		}
	}
}

func (s *Server) markInstantiated(sess *session.Session, pg *page) {
	s.instantiated.Store(sess.ID()+" "+pg.path, struct{}{})
}

func (s *Server) isInstantiated(sess *session.Session, pg *page) bool {
	_, ok := s.instantiated.Load(sess.ID() + " " + pg.path)
	return ok
}

// requestFacts sources the request-level decision facts from HTTP headers.
type requestFacts struct {
	r *http.Request
}

func (rf requestFacts) IsAjax() bool {
	return rf.r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func (rf requestFacts) ShouldPreserveClientURL() bool {
	return rf.r.Header.Get("X-Preserve-Client-Url") != ""
}

// pageProvider sources the page-level decision facts.
type pageProvider struct {
	srv  *Server
	pg   *page
	sess *session.Session
}

func (p pageProvider) IsPageStateless() bool {
	return p.pg.stateless
}

func (p pageProvider) IsNewPageInstance() bool {
	return !p.srv.isInstantiated(p.sess, p.pg)
}

// pageRenderer renders the page body into a capture buffer, off the live
// response stream.
type pageRenderer struct {
	srv  *Server
	pg   *page
	sess *session.Session
}

func (pr pageRenderer) Render(target *url.URL) (*buffer.Response, error) {
	w := buffer.NewWriter()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(pr.pg.body)); err != nil {
		return nil, err
	}
	pr.srv.markInstantiated(pr.sess, pr.pg)
	return w.Response(), nil
}

// httpSink adapts the live http.ResponseWriter to the engine's response sink.
type httpSink struct {
	w http.ResponseWriter
	r *http.Request
}

func (s httpSink) Write(res *buffer.Response) error {
	return res.WriteTo(s.w)
}

func (s httpSink) SendRedirect(url string) error {
	http.Redirect(s.w, s.r, url, http.StatusSeeOther)
	return nil
}

// getLogger returns the logger from the request context.
// If no logger is found, it will return the default logger.
func getLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}
	return logger
}
