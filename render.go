// Package pagecycle decides, per request that resolves to a page, whether to
// render the page and write it to the current response, redirect the client
// to the page's canonical URL, or render off the critical path, buffer the
// output keyed by the canonical URL and redirect, letting a follow-up request
// consume the buffer.
package pagecycle

import (
	"net/url"
	"time"

	"github.com/pagecycle/pagecycle/buffer"
	"github.com/pagecycle/pagecycle/store"

	"github.com/rs/zerolog/log"
)

// Request exposes the facts the engine needs about the incoming request.
type Request interface {
	IsAjax() bool
	// ShouldPreserveClientURL reports whether the client has pinned its own
	// URL (embedded contexts) and must not be navigated away from it.
	ShouldPreserveClientURL() bool
}

// PageProvider exposes the facts about the page resolved for the request.
type PageProvider interface {
	// IsPageStateless reports whether the page can be regenerated from its
	// URL alone, without server-side session state.
	IsPageStateless() bool
	// IsNewPageInstance reports whether no live instance of the page exists
	// yet, meaning the target URL by itself can recreate it.
	IsNewPageInstance() bool
}

// Session exposes the facts about the session the request belongs to.
type Session interface {
	// IsTemporary reports whether the session has not been established on
	// the client yet. A temporary session cannot carry buffered output
	// across a redirect.
	IsTemporary() bool
}

// ResponseSink receives the single observable action of a Respond call.
// Write and SendRedirect are mutually exclusive per invocation.
type ResponseSink interface {
	Write(res *buffer.Response) error
	SendRedirect(url string) error
}

// Renderer renders the page for the target URL into a buffered response.
// A nil response with a nil error means another handler took over the live
// response mid-render and the engine must yield without emitting anything.
// Errors propagate unchanged to the caller of Respond.
type Renderer interface {
	Render(target *url.URL) (*buffer.Response, error)
}

// RequestCycle bundles the collaborators and resolved URLs for one
// request/response pair. A cycle is used for a single Respond call.
type RequestCycle struct {
	Request  Request
	Provider PageProvider
	Session  Session
	Response ResponseSink
	Renderer Renderer

	// TargetURL is the canonical URL the resolved page handler maps to.
	TargetURL *url.URL
	// CurrentURL is the URL the client currently shows.
	CurrentURL *url.URL

	// Policy is the redirect policy attached to the resolved handler.
	Policy RedirectPolicy
}

// Settings are the application-level knobs the engine reads on every cycle.
type Settings struct {
	// Strategy selects how rendered output reaches the client.
	Strategy RenderStrategy
	// RedirectForStatelessPage enables buffer-then-redirect for stateless
	// pages. When false, a stateless page is always written directly.
	RedirectForStatelessPage bool
	// BufferTTL bounds how long an unconsumed buffered response survives
	// before it may be evicted as orphaned.
	BufferTTL time.Duration
}

const defaultBufferTTL = time.Minute

// Engine is the response-strategy engine. It is safe for concurrent use; all
// per-request state lives in the RequestCycle.
type Engine struct {
	store    store.Store
	settings Settings
}

func NewEngine(s store.Store, settings Settings) *Engine {
	if settings.BufferTTL == 0 {
		settings.BufferTTL = defaultBufferTTL
	}
	return &Engine{
		store:    s,
		settings: settings,
	}
}

// Respond produces exactly one of three observable actions on the cycle's
// response sink: a write, a redirect, or nothing at all (when the render was
// preempted by another handler, which then owns the response).
func (e *Engine) Respond(cycle *RequestCycle) error {
	target := cycle.TargetURL.String()

	// A response buffered by an earlier cycle wins over every policy and
	// fact: this is the second half of a buffer-then-redirect round trip.
	if buffered := e.getAndRemoveBufferedResponse(target); buffered != nil {
		log.Trace().Str("url", target).Msg("Writing stored buffered response")
		return cycle.Response.Write(buffered)
	}

	facts := e.gatherFacts(cycle)

	if ShouldRenderAndWrite(facts) {
		res, err := cycle.Renderer.Render(cycle.TargetURL)
		if err != nil || res == nil {
			return err
		}
		log.Trace().Str("url", target).Msg("Rendering page into current response")
		return cycle.Response.Write(res)
	}

	if ShouldRedirectToTarget(facts) {
		log.Trace().Str("url", target).Str("policy", facts.Policy.String()).Msg("Redirecting without rendering")
		return cycle.Response.SendRedirect(target)
	}

	return e.renderToBuffer(cycle, facts)
}

// renderToBuffer is the unconditional fallback when neither predicate fires:
// render the page off the live response, store the output under the target
// URL and redirect, so the next request is served from the store.
func (e *Engine) renderToBuffer(cycle *RequestCycle, facts Facts) error {
	target := cycle.TargetURL.String()

	if !facts.RedirectToBuffer {
		// The fallback runs the same dance whether or not the
		// redirect-to-buffer strategy is selected.
		log.Debug().Str("url", target).Str("strategy", e.settings.Strategy.String()).
			Msg("Falling back to buffering outside redirect-to-buffer strategy")
	}

	// A stateless page with stateless redirects disabled can only ever be
	// written directly.
	if facts.PageStateless && !facts.RedirectForStatelessPage {
		res, err := cycle.Renderer.Render(cycle.TargetURL)
		if err != nil || res == nil {
			return err
		}
		log.Trace().Str("url", target).Msg("Writing stateless page directly")
		return cycle.Response.Write(res)
	}

	res, err := cycle.Renderer.Render(cycle.TargetURL)
	if err != nil {
		return err
	}
	if res == nil {
		// Another handler replaced the response mid-render and owns it now.
		log.Trace().Str("url", target).Msg("Render preempted, yielding response")
		return nil
	}

	if facts.TargetEqualsCurrentURL {
		// Redirecting to the URL the client is already on is wasted work
		// and risks a loop.
		log.Trace().Str("url", target).Msg("Target equals current URL, writing buffered output directly")
		return cycle.Response.Write(res)
	}

	if err := e.store.Put(target, time.Now().Add(e.settings.BufferTTL), res.Bytes()); err != nil {
		// A response must still be produced; losing the buffer only costs
		// the redirect optimization.
		log.Error().Err(err).Str("url", target).Msg("Could not store buffered response")
		return cycle.Response.Write(res)
	}
	log.Trace().Str("url", target).Msg("Stored buffered response, redirecting")
	return cycle.Response.SendRedirect(target)
}

// getAndRemoveBufferedResponse consumes the buffered entry for url, if any.
func (e *Engine) getAndRemoveBufferedResponse(url string) *buffer.Response {
	payload, ok, err := e.store.GetAndRemove(url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Could not read from buffered-response store")
		return nil
	}
	if !ok {
		return nil
	}
	res, err := buffer.ParseResponse(payload)
	if err != nil {
		// the entry is already removed, so a corrupt payload just means a miss
		log.Error().Err(err).Str("url", url).Msg("Discarding corrupt buffered response")
		return nil
	}
	return res
}

// gatherFacts computes the decision facts exactly once for this cycle.
func (e *Engine) gatherFacts(cycle *RequestCycle) Facts {
	return Facts{
		Ajax:                     cycle.Request.IsAjax(),
		OnePassRender:            e.settings.Strategy == OnePassRender,
		RedirectToRender:         e.settings.Strategy == RedirectToRender,
		RedirectToBuffer:         e.settings.Strategy == RedirectToBuffer,
		Policy:                   cycle.Policy,
		PreserveClientURL:        cycle.Request.ShouldPreserveClientURL(),
		TargetEqualsCurrentURL:   cycle.TargetURL.String() == cycle.CurrentURL.String(),
		NewPageInstance:          cycle.Provider.IsNewPageInstance(),
		PageStateless:            cycle.Provider.IsPageStateless(),
		SessionTemporary:         cycle.Session.IsTemporary(),
		RedirectForStatelessPage: e.settings.RedirectForStatelessPage,
	}
}
