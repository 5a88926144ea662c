package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-crawler/internal/config"
)

func TestResolveSites(t *testing.T) {
	all, err := resolveSites("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"amazon", "ebay", "shopee", "walmart"}, all)

	one, err := resolveSites("Shopee")
	require.NoError(t, err)
	assert.Equal(t, []string{"shopee"}, one)

	_, err = resolveSites("etsy")
	assert.Error(t, err)
}

func TestCrawlFlagsValidate(t *testing.T) {
	base := func() crawlFlags {
		return crawlFlags{site: "amazon", searches: []string{"wireless mouse"}, sink: "json", headless: true}
	}

	tests := []struct {
		name    string
		mutate  func(*crawlFlags)
		wantErr string
	}{
		{"valid", func(*crawlFlags) {}, ""},
		{"no terms", func(f *crawlFlags) { f.searches = nil }, "--search"},
		{"unknown site", func(f *crawlFlags) { f.site = "etsy" }, "unknown site"},
		{"base url with all", func(f *crawlFlags) { f.site = "all"; f.baseURL = "https://x" }, "single site"},
		{"cookies with ALL", func(f *crawlFlags) { f.site = "ALL"; f.cookiesFile = "c.json" }, "single site"},
		{"cookies with padded all", func(f *crawlFlags) { f.site = " All "; f.cookiesFile = "c.json" }, "single site"},
		{"unknown backend", func(f *crawlFlags) { f.backend = "curl" }, "backend"},
		{"unknown sink", func(f *crawlFlags) { f.sink = "kafka" }, "sink"},
		{"reviews without details", func(f *crawlFlags) { f.reviews = 5 }, "--details"},
		{"reviews with details", func(f *crawlFlags) { f.reviews = 5; f.details = true }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.mutate(&f)
			err := f.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	applyFlags(cfg, crawlFlags{backend: "static", output: "out", limit: 0, reviews: 7, headless: true, noHeadless: true})

	assert.Equal(t, "static", cfg.Crawler.Backend)
	assert.Equal(t, "out", cfg.Crawler.OutputDir)
	assert.Equal(t, 0, cfg.Crawler.ResultLimit)
	assert.Equal(t, 7, cfg.Crawler.MaxReviews)
	assert.False(t, cfg.Browser.Headless)

	cfg, err = config.Load()
	require.NoError(t, err)
	applyFlags(cfg, crawlFlags{limit: -1, headless: true})
	assert.Equal(t, 50, cfg.Crawler.ResultLimit)
	assert.True(t, cfg.Browser.Headless)
}

func TestPerSitePaths(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "cookies/shopee_cookies.json", cookiesPath(cfg, crawlFlags{}, "shopee"))
	assert.Equal(t, "mine.json", cookiesPath(cfg, crawlFlags{cookiesFile: "mine.json"}, "shopee"))
	assert.Equal(t, "logs/ebay_requests.json", requestLogPath(cfg, "ebay"))
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, ":9090", listenAddr("9090"))
	assert.Equal(t, "127.0.0.1:9090", listenAddr("127.0.0.1:9090"))
	assert.Equal(t, ":9090", listenAddr(":9090"))
}

func TestConfigureSiteUsesOverrides(t *testing.T) {
	env := &crawlEnv{
		overrides: map[string]config.SiteOverride{"shopee": {BaseURL: "https://shopee.tw", Currency: "NT$"}},
	}

	site, err := env.configureSite("shopee")
	require.NoError(t, err)
	assert.Equal(t, "https://shopee.tw", site.BaseURL)
	assert.Equal(t, "NT$", site.DefaultCurrency)

	env.flags.baseURL = "https://shopee.com.my"
	site, err = env.configureSite("shopee")
	require.NoError(t, err)
	assert.Equal(t, "https://shopee.com.my", site.BaseURL)
}

func TestRootCommandRejectsMissingSearch(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--site", "amazon"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--search")
}
