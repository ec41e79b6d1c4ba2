package pagecycle

// RedirectPolicy controls whether a page handler may redirect at all.
// It is attached to the resolved handler and is immutable for the request.
type RedirectPolicy uint8

const (
	// AutoRedirect leaves the choice to the render strategy and request facts.
	AutoRedirect RedirectPolicy = iota
	// NeverRedirect forces the page output to be written to the current response.
	NeverRedirect
	// AlwaysRedirect forces a redirect to the canonical URL before any render.
	AlwaysRedirect
)

func (p RedirectPolicy) String() string {
	switch p {
	case NeverRedirect:
		return "never-redirect"
	case AlwaysRedirect:
		return "always-redirect"
	default:
		return "auto-redirect"
	}
}

// RenderStrategy selects how rendered page output reaches the client.
type RenderStrategy uint8

const (
	// RedirectToBuffer renders off the live response, buffers the output
	// keyed by the canonical URL, and redirects the client to it.
	RedirectToBuffer RenderStrategy = iota
	// OnePassRender serves the page output within the same request that
	// resolved the handler, without any redirect.
	OnePassRender
	// RedirectToRender redirects to the canonical URL before any render.
	RedirectToRender
)

func (s RenderStrategy) String() string {
	switch s {
	case OnePassRender:
		return "one-pass-render"
	case RedirectToRender:
		return "redirect-to-render"
	default:
		return "redirect-to-buffer"
	}
}

// Facts is the per-request snapshot the decision predicates operate on.
// Every field is sourced from a collaborator exactly once per Respond call
// and never mutated afterwards.
type Facts struct {
	Ajax                     bool
	OnePassRender            bool
	RedirectToRender         bool
	RedirectToBuffer         bool
	Policy                   RedirectPolicy
	PreserveClientURL        bool
	TargetEqualsCurrentURL   bool
	NewPageInstance          bool
	PageStateless            bool
	SessionTemporary         bool
	RedirectForStatelessPage bool
}

// ShouldRenderAndWrite reports whether the page must be rendered now and its
// output written to the current response, with no redirect. True when any of:
//   - the policy opts out of redirects entirely
//   - one-pass rendering is on, the request is not ajax, and the policy does
//     not force a redirect
//   - the target URL matches the client's current URL for a stateful,
//     already instantiated page on a non-ajax request
//   - the target URL matches the current URL under redirect-to-render
//     (there is nothing to redirect to)
//   - the client has pinned its own URL and must not be navigated away
func ShouldRenderAndWrite(f Facts) bool {
	return f.Policy == NeverRedirect ||
		(!f.Ajax && f.OnePassRender && f.Policy != AlwaysRedirect) ||
		(!f.Ajax && f.TargetEqualsCurrentURL && !f.PageStateless && !f.NewPageInstance) ||
		(f.TargetEqualsCurrentURL && f.RedirectToRender) ||
		f.PreserveClientURL
}

// ShouldRedirectToTarget reports whether the client must be redirected to the
// canonical URL without rendering at all. True when any of:
//   - the policy mandates a redirect
//   - the redirect-to-render strategy is on
//   - an ajax request already targets its current URL (the caller expects a
//     redirect response, not markup)
//   - the URLs differ and the page has no live instance yet, so the target
//     URL alone can recreate it
//   - the URLs differ and a stateless page rides on a temporary session,
//     which cannot hold buffered output across the redirect
func ShouldRedirectToTarget(f Facts) bool {
	return f.Policy == AlwaysRedirect ||
		f.RedirectToRender ||
		(f.Ajax && f.TargetEqualsCurrentURL) ||
		(!f.TargetEqualsCurrentURL && f.NewPageInstance) ||
		(!f.TargetEqualsCurrentURL && f.SessionTemporary && f.PageStateless)
}
