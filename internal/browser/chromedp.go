package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChromeOptions configures the chromedp-backed engine.
type ChromeOptions struct {
	Headless bool
	// UserAgent avoids the portal serving degraded markup to the default
	// headless agent string.
	UserAgent string
	// DownloadDir is the scratch directory downloads land in before the
	// correlator moves them to their deterministic artifact path.
	DownloadDir string
	// ActionsPerSecond paces UI interactions so the portal's frontend is
	// not hammered faster than a human session. Zero disables pacing.
	ActionsPerSecond float64
}

type chromeEngine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	opts        ChromeOptions
	limiter     *rate.Limiter

	mu   sync.Mutex
	page *chromePage
}

// NewChromeEngine launches a Chrome process managed by chromedp. The engine
// must be closed to reap the process.
func NewChromeEngine(ctx context.Context, opts ChromeOptions) (Engine, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("lang", "es-ES"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	var limiter *rate.Limiter
	if opts.ActionsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ActionsPerSecond), 1)
	}

	return &chromeEngine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		opts:        opts,
		limiter:     limiter,
	}, nil
}

func (e *chromeEngine) NewContext(_ context.Context) (Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Discard any previous context so a failed login attempt cannot leak
	// cookies or half-submitted forms into the next one.
	if e.page != nil {
		e.page.cancel()
		e.page = nil
	}

	tabCtx, tabCancel := chromedp.NewContext(e.allocCtx)

	p := &chromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		limiter: e.limiter,
		dlDir:   e.opts.DownloadDir,
		names:   make(map[string]string),
		done:    make(chan string, 8),
	}

	chromedp.ListenTarget(tabCtx, p.onDownloadEvent)

	err := chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(e.opts.DownloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		tabCancel()
		return nil, eris.Wrap(err, "browser: open context")
	}

	e.page = p
	return p, nil
}

func (e *chromeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.page != nil {
		e.page.cancel()
		e.page = nil
	}
	e.allocCancel()
	return nil
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
	dlDir   string

	mu    sync.Mutex
	names map[string]string // download GUID -> suggested filename
	done  chan string       // completed download GUIDs
}

func (p *chromePage) onDownloadEvent(ev any) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		p.mu.Lock()
		p.names[e.GUID] = e.SuggestedFilename
		p.mu.Unlock()
	case *cdpbrowser.EventDownloadProgress:
		if e.State == cdpbrowser.DownloadProgressStateCompleted {
			select {
			case p.done <- e.GUID:
			default:
			}
		}
	}
}

// run executes chromedp actions against the tab, bounded by the caller's
// context and an optional timeout.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	// The caller's cancellation and the per-call timeout only ever cancel
	// this derived context. The tab context outlives every single call.
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: location")
	}
	return loc, nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, 0,
		chromedp.Clear(selector, queryOpt(selector)),
		chromedp.SendKeys(selector, value, queryOpt(selector)),
	)
	if err != nil {
		return eris.Wrapf(err, "browser: fill %s", selector)
	}
	return nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, 0, chromedp.Click(selector, queryOpt(selector))); err != nil {
		return eris.Wrapf(err, "browser: click %s", selector)
	}
	return nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, queryOpt(selector))); err != nil {
		return eris.Wrapf(err, "browser: wait visible %s", selector)
	}
	return nil
}

// waitPoll is the interval between condition re-evaluations in WaitFor.
const waitPoll = 250 * time.Millisecond

func (p *chromePage) WaitFor(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return eris.Errorf("browser: condition not met within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPoll):
		}
	}
}

func (p *chromePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	js := fmt.Sprintf(`(() => {
		const nodes = %s;
		return nodes.length > 0 && nodes[0].offsetParent !== null;
	})()`, nodesJS(selector))
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &visible)); err != nil {
		return false, eris.Wrapf(err, "browser: is visible %s", selector)
	}
	return visible, nil
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	texts, err := p.Texts(ctx, selector)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", eris.Errorf("browser: no node matches %s", selector)
	}
	return texts[0], nil
}

func (p *chromePage) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	js := fmt.Sprintf(`%s.map(n => (n.textContent || '').trim())`, nodesJS(selector))
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &texts)); err != nil {
		return nil, eris.Wrapf(err, "browser: texts %s", selector)
	}
	return texts, nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`%s.length`, nodesJS(selector))
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &n)); err != nil {
		return 0, eris.Wrapf(err, "browser: count %s", selector)
	}
	return n, nil
}

func (p *chromePage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var val string
	var ok bool
	if err := p.run(ctx, 0, chromedp.AttributeValue(selector, name, &val, &ok, queryOpt(selector))); err != nil {
		return "", false, eris.Wrapf(err, "browser: attribute %s[%s]", selector, name)
	}
	return val, ok, nil
}

func (p *chromePage) Download(ctx context.Context, triggerSelector string, timeout time.Duration) (*Downloaded, error) {
	// Drain completions left over from an earlier, slower download.
	for {
		select {
		case <-p.done:
			continue
		default:
		}
		break
	}

	if err := p.Click(ctx, triggerSelector); err != nil {
		return nil, err
	}

	select {
	case guid := <-p.done:
		p.mu.Lock()
		name := p.names[guid]
		delete(p.names, guid)
		p.mu.Unlock()
		zap.L().Debug("browser: download complete",
			zap.String("guid", guid),
			zap.String("suggested_name", name),
		)
		return &Downloaded{
			Path:          filepath.Join(p.dlDir, guid),
			SuggestedName: name,
		}, nil
	case <-time.After(timeout):
		return nil, eris.Errorf("browser: download did not complete within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// queryOpt picks the chromedp query strategy: XPath descriptors start with a
// slash or parenthesis, everything else is treated as a CSS selector.
func queryOpt(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// nodesJS builds a JS expression evaluating to an array of nodes matching
// the selector, supporting both CSS and XPath descriptors.
func nodesJS(selector string) string {
	if isXPath(selector) {
		return fmt.Sprintf(`(() => {
			const out = [];
			const it = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
			return out;
		})()`, selector)
	}
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%q))`, selector)
}
