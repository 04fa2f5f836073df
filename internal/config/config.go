// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Portal    PortalConfig    `yaml:"portal" mapstructure:"portal"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" mapstructure:"timeouts"`
	Selectors SelectorConfig  `yaml:"selectors" mapstructure:"selectors"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PortalConfig identifies the billing portal and the credentials used to
// authenticate against it.
type PortalConfig struct {
	LoginURL       string `yaml:"login_url" mapstructure:"login_url"`
	SuccessURLRoot string `yaml:"success_url_root" mapstructure:"success_url_root"`
	SearchURL      string `yaml:"search_url" mapstructure:"search_url"`
	Username       string `yaml:"username" mapstructure:"username"`
	Password       string `yaml:"password" mapstructure:"password"`
}

// AuthConfig bounds the session establishment retry loop.
type AuthConfig struct {
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelaySecs int `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	LoginWaitSecs  int `yaml:"login_wait_secs" mapstructure:"login_wait_secs"`
}

// RetryDelay returns the fixed delay between authentication attempts.
func (a AuthConfig) RetryDelay() time.Duration { return time.Duration(a.RetryDelaySecs) * time.Second }

// LoginWait returns the bound on waiting for the post-login indicator.
func (a AuthConfig) LoginWait() time.Duration { return time.Duration(a.LoginWaitSecs) * time.Second }

// SearchConfig configures the per-account filter application.
type SearchConfig struct {
	Group       string `yaml:"group" mapstructure:"group"`
	ResultLimit int    `yaml:"result_limit" mapstructure:"result_limit"`
}

// TimeoutConfig holds every UI interaction bound, in seconds.
type TimeoutConfig struct {
	LoginFormSecs      int `yaml:"login_form_secs" mapstructure:"login_form_secs"`
	PostLoginProbeSecs int `yaml:"post_login_probe_secs" mapstructure:"post_login_probe_secs"`
	FilterReadySecs    int `yaml:"filter_ready_secs" mapstructure:"filter_ready_secs"`
	AccountOptionSecs  int `yaml:"account_option_secs" mapstructure:"account_option_secs"`
	ResultsRenderSecs  int `yaml:"results_render_secs" mapstructure:"results_render_secs"`
	TableWaitSecs      int `yaml:"table_wait_secs" mapstructure:"table_wait_secs"`
	CellSettleSecs     int `yaml:"cell_settle_secs" mapstructure:"cell_settle_secs"`
	DownloadSecs       int `yaml:"download_secs" mapstructure:"download_secs"`
	NextPageSecs       int `yaml:"next_page_secs" mapstructure:"next_page_secs"`
	CookieBannerSecs   int `yaml:"cookie_banner_secs" mapstructure:"cookie_banner_secs"`
}

// Durations for TimeoutConfig fields.
func (t TimeoutConfig) LoginForm() time.Duration      { return secs(t.LoginFormSecs) }
func (t TimeoutConfig) PostLoginProbe() time.Duration { return secs(t.PostLoginProbeSecs) }
func (t TimeoutConfig) AccountOption() time.Duration  { return secs(t.AccountOptionSecs) }
func (t TimeoutConfig) FilterReady() time.Duration    { return secs(t.FilterReadySecs) }
func (t TimeoutConfig) ResultsRender() time.Duration { return secs(t.ResultsRenderSecs) }
func (t TimeoutConfig) TableWait() time.Duration     { return secs(t.TableWaitSecs) }
func (t TimeoutConfig) CellSettle() time.Duration    { return secs(t.CellSettleSecs) }
func (t TimeoutConfig) Download() time.Duration      { return secs(t.DownloadSecs) }
func (t TimeoutConfig) NextPage() time.Duration      { return secs(t.NextPageSecs) }
func (t TimeoutConfig) CookieBanner() time.Duration  { return secs(t.CookieBannerSecs) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// SelectorConfig externalizes every UI selector descriptor the pipeline
// interacts with. Entries containing a %s are templates completed at runtime
// (account id, row index).
type SelectorConfig struct {
	LoginForm      string `yaml:"login_form" mapstructure:"login_form"`
	UsernameInput  string `yaml:"username_input" mapstructure:"username_input"`
	PasswordInput  string `yaml:"password_input" mapstructure:"password_input"`
	LoginButton    string `yaml:"login_button" mapstructure:"login_button"`
	LoginError     string `yaml:"login_error" mapstructure:"login_error"`
	CookieConsent  string `yaml:"cookie_consent" mapstructure:"cookie_consent"`
	PostLoginProbe string `yaml:"post_login_probe" mapstructure:"post_login_probe"`

	FilterPanel   string `yaml:"filter_panel" mapstructure:"filter_panel"`
	GroupSelect   string `yaml:"group_select" mapstructure:"group_select"`
	GroupOption   string `yaml:"group_option" mapstructure:"group_option"`     // template: group name
	AccountInput  string `yaml:"account_input" mapstructure:"account_input"`
	AccountOption string `yaml:"account_option" mapstructure:"account_option"` // template: account id
	DateFromInput string `yaml:"date_from_input" mapstructure:"date_from_input"`
	DateToInput   string `yaml:"date_to_input" mapstructure:"date_to_input"`
	LimitInput    string `yaml:"limit_input" mapstructure:"limit_input"`
	SearchButton  string `yaml:"search_button" mapstructure:"search_button"`

	ResultsTable string `yaml:"results_table" mapstructure:"results_table"`
	LoadingCell  string `yaml:"loading_cell" mapstructure:"loading_cell"`
	ResultRows   string `yaml:"result_rows" mapstructure:"result_rows"`
	RowCells     string `yaml:"row_cells" mapstructure:"row_cells"`         // template: 1-based row index
	RowXMLLink   string `yaml:"row_xml_link" mapstructure:"row_xml_link"`   // template: 1-based row index
	RowPDFLink   string `yaml:"row_pdf_link" mapstructure:"row_pdf_link"`   // template: 1-based row index
	NextPage     string `yaml:"next_page" mapstructure:"next_page"`
}

// StorageConfig configures on-disk layout.
type StorageConfig struct {
	DownloadRoot string `yaml:"download_root" mapstructure:"download_root"`
	ExportRoot   string `yaml:"export_root" mapstructure:"export_root"`
}

// BrowserConfig configures the automation engine.
type BrowserConfig struct {
	Headless         bool    `yaml:"headless" mapstructure:"headless"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	ActionsPerSecond float64 `yaml:"actions_per_second" mapstructure:"actions_per_second"`
}

// AnthropicConfig holds the AI extraction settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.retry_delay_secs", 5)
	v.SetDefault("auth.login_wait_secs", 45)

	v.SetDefault("search.group", "EMPRESAS")
	v.SetDefault("search.result_limit", 100)

	v.SetDefault("timeouts.login_form_secs", 10)
	v.SetDefault("timeouts.post_login_probe_secs", 10)
	v.SetDefault("timeouts.filter_ready_secs", 20)
	v.SetDefault("timeouts.account_option_secs", 10)
	v.SetDefault("timeouts.results_render_secs", 60)
	v.SetDefault("timeouts.table_wait_secs", 30)
	v.SetDefault("timeouts.cell_settle_secs", 15)
	v.SetDefault("timeouts.download_secs", 30)
	v.SetDefault("timeouts.next_page_secs", 10)
	v.SetDefault("timeouts.cookie_banner_secs", 5)

	v.SetDefault("storage.download_root", "downloads")
	v.SetDefault("storage.export_root", "exports")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("browser.actions_per_second", 4.0)

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)

	// Selector descriptors for the portal UI.
	v.SetDefault("selectors.login_form", "form.slds-form")
	v.SetDefault("selectors.username_input", `input[name="Username"]`)
	v.SetDefault("selectors.password_input", `input[name="password"]`)
	v.SetDefault("selectors.login_button", `//button[contains(., "ACCEDER")]`)
	v.SetDefault("selectors.login_error", `div[class*="error"], span[class*="error"]`)
	v.SetDefault("selectors.cookie_consent", "#truste-consent-button")
	v.SetDefault("selectors.post_login_probe", "nav.portal-home")
	v.SetDefault("selectors.filter_panel", "div.filter-panel")
	v.SetDefault("selectors.group_select", "div.filter-panel select.group-filter")
	v.SetDefault("selectors.group_option", `//select[contains(@class,"group-filter")]/option[text()=%q]`)
	v.SetDefault("selectors.account_input", "div.filter-panel input.cups-filter")
	v.SetDefault("selectors.account_option", `//ul[contains(@class,"cups-options")]/li[text()=%q]`)
	v.SetDefault("selectors.date_from_input", `input[name="fechaDesde"]`)
	v.SetDefault("selectors.date_to_input", `input[name="fechaHasta"]`)
	v.SetDefault("selectors.limit_input", `input[name="numResultados"]`)
	v.SetDefault("selectors.search_button", `//button[contains(., "BUSCAR")]`)
	v.SetDefault("selectors.results_table", "table.invoice-results")
	v.SetDefault("selectors.loading_cell", "table.invoice-results td.loading-placeholder")
	v.SetDefault("selectors.result_rows", "table.invoice-results tbody tr")
	v.SetDefault("selectors.row_cells", "table.invoice-results tbody tr:nth-child(%d) td")
	v.SetDefault("selectors.row_xml_link", "table.invoice-results tbody tr:nth-child(%d) a.download-xml")
	v.SetDefault("selectors.row_pdf_link", "table.invoice-results tbody tr:nth-child(%d) a.download-pdf")
	v.SetDefault("selectors.next_page", "button.pagination-next")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
