package portal

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/config"
)

// fakePage is a scriptable in-memory browser.Page.
type fakePage struct {
	mu sync.Mutex

	location  string
	visible   map[string]bool
	texts     map[string][]string
	counts    map[string]int
	attrs     map[string]map[string]string
	downloads map[string]*browser.Downloaded

	navigated []string
	filled    map[string]string
	clicked   []string
	closed    int

	// onClick lets a test mutate page state when a selector is activated.
	onClick func(p *fakePage, selector string)
	// failClick makes specific selectors fail to activate.
	failClick map[string]bool
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:   map[string]bool{},
		texts:     map[string][]string{},
		counts:    map[string]int{},
		attrs:     map[string]map[string]string{},
		downloads: map[string]*browser.Downloaded{},
		filled:    map[string]string{},
		failClick: map[string]bool{},
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	p.location = url
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.mu.Lock()
	fail := p.failClick[selector]
	p.clicked = append(p.clicked, selector)
	onClick := p.onClick
	p.mu.Unlock()

	if fail {
		return eris.Errorf("fake: click %s failed", selector)
	}
	if onClick != nil {
		onClick(p, selector)
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[selector] {
		return eris.Errorf("fake: %s not visible", selector)
	}
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, _ time.Duration, cond func(ctx context.Context) (bool, error)) error {
	// Evaluate twice so conditions that settle after one state change pass.
	for i := 0; i < 2; i++ {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return eris.New("fake: condition not met")
}

func (p *fakePage) IsVisible(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector], nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	texts, err := p.Texts(ctx, selector)
	if err != nil || len(texts) == 0 {
		return "", eris.Errorf("fake: no text for %s", selector)
	}
	return texts[0], nil
}

func (p *fakePage) Texts(_ context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	texts, ok := p.texts[selector]
	if !ok {
		return nil, eris.Errorf("fake: no nodes for %s", selector)
	}
	return texts, nil
}

func (p *fakePage) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[selector], nil
}

func (p *fakePage) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	attrs, ok := p.attrs[selector]
	if !ok {
		return "", false, nil
	}
	v, ok := attrs[name]
	return v, ok, nil
}

func (p *fakePage) Download(ctx context.Context, triggerSelector string, _ time.Duration) (*browser.Downloaded, error) {
	if err := p.Click(ctx, triggerSelector); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	dl, ok := p.downloads[triggerSelector]
	if !ok {
		return nil, eris.Errorf("fake: no download for %s", triggerSelector)
	}
	return dl, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// fakeEngine hands out pages built by setup and counts teardowns.
type fakeEngine struct {
	mu       sync.Mutex
	setup    func(attempt int) *fakePage
	contexts int
	closed   int
}

func (e *fakeEngine) NewContext(context.Context) (browser.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contexts++
	return e.setup(e.contexts), nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

// testConfig returns a config with deterministic selectors and zeroed
// retry delays so tests never sleep.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Portal.LoginURL = "https://portal.test/login"
	cfg.Portal.SuccessURLRoot = "https://portal.test/home"
	cfg.Portal.SearchURL = "https://portal.test/search"
	cfg.Portal.Username = "robot@test"
	cfg.Portal.Password = "secret"

	cfg.Auth.MaxAttempts = 5
	cfg.Auth.RetryDelaySecs = 0
	cfg.Auth.LoginWaitSecs = 1

	cfg.Search.Group = "EMPRESAS"
	cfg.Search.ResultLimit = 100

	cfg.Timeouts.LoginFormSecs = 1
	cfg.Timeouts.PostLoginProbeSecs = 1
	cfg.Timeouts.FilterReadySecs = 1
	cfg.Timeouts.AccountOptionSecs = 1
	cfg.Timeouts.ResultsRenderSecs = 1
	cfg.Timeouts.TableWaitSecs = 1
	cfg.Timeouts.CellSettleSecs = 1
	cfg.Timeouts.DownloadSecs = 1
	cfg.Timeouts.NextPageSecs = 1
	cfg.Timeouts.CookieBannerSecs = 1

	cfg.Selectors = config.SelectorConfig{
		LoginForm:     "form#login",
		UsernameInput: "input#user",
		PasswordInput: "input#pass",
		LoginButton:   "button#enter",
		LoginError:    "div.error",
		CookieConsent: "#cookies-ok",
		FilterPanel:   "div#filters",
		GroupSelect:   "select#group",
		GroupOption:   "option-group-%q",
		AccountInput:  "input#cups",
		AccountOption: "option-cups-%q",
		DateFromInput: "input#from",
		DateToInput:   "input#to",
		LimitInput:    "input#limit",
		SearchButton:  "button#search",
		ResultsTable:  "table#results",
		LoadingCell:   "td.loading",
		ResultRows:    "table#results tr",
		RowCells:      "row-%d-cells",
		RowXMLLink:    "row-%d-xml",
		RowPDFLink:    "row-%d-pdf",
		NextPage:      "button#next",
	}
	return cfg
}
