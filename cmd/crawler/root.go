package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maltedev/catalog-crawler/internal/sites"
)

type crawlFlags struct {
	backend            string
	site               string
	searches           []string
	output             string
	proxy              string
	cookiesFile        string
	headless           bool
	noHeadless         bool
	manualVerification bool
	baseURL            string
	limit              int
	details            bool
	reviews            int
	sink               string
	publish            bool
	dedup              bool
	renderProxy        bool
	metricsAddr        string
}

func newRootCmd() *cobra.Command {
	var f crawlFlags

	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "Crawl product listings from Amazon, eBay, Walmart and Shopee",
		Long: `Runs search terms against one catalog, or all of them in parallel, and writes
the normalized records to <output>/<site>_<backend>.json plus the selected sink.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), f, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.backend, "backend", "", "Page backend: browser or static (default from CRAWLER_BACKEND)")
	fl.StringVar(&f.site, "site", "amazon", "Site to crawl: "+strings.Join(sites.Names(), ", ")+" or all")
	fl.StringArrayVar(&f.searches, "search", nil, "Search term, repeatable")
	fl.StringVarP(&f.output, "output", "o", "", "Output directory (default from CRAWLER_OUTPUT_DIR)")
	fl.StringVar(&f.proxy, "proxy", "", "Proxy server URL")
	fl.StringVar(&f.cookiesFile, "cookies-file", "", "Cookie snapshot file (single site only)")
	fl.BoolVar(&f.headless, "headless", true, "Run the browser headless")
	fl.BoolVar(&f.noHeadless, "no-headless", false, "Show the browser window")
	fl.BoolVar(&f.manualVerification, "manual-verification", false, "Prompt on the terminal to clear verification walls by hand")
	fl.StringVar(&f.baseURL, "base-url", "", "Override the site base URL (single site only)")
	fl.IntVar(&f.limit, "limit", -1, "Maximum records per search term, 0 for no cap (default from CRAWLER_RESULT_LIMIT)")
	fl.BoolVar(&f.details, "details", false, "Fetch every product page and merge its fields")
	fl.IntVar(&f.reviews, "reviews", 0, "Reviews to fetch per product, needs --details")
	fl.StringVar(&f.sink, "sink", "json", "Record sink: json, postgres or mongo")
	fl.BoolVar(&f.publish, "publish", false, "Publish records to the redis stream")
	fl.BoolVar(&f.dedup, "dedup", false, "Skip detail pages fetched within CRAWLER_DEDUP_TTL (redis)")
	fl.BoolVar(&f.renderProxy, "render-proxy", true, "Fall back to the text mirror when a page is blocked or yields no records")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics, /health and run diagnostics on this address")

	cmd.AddCommand(newRelayCmd())
	return cmd
}

func (f *crawlFlags) validate() error {
	if len(f.searches) == 0 {
		return errors.New("at least one --search term is required")
	}
	if _, err := resolveSites(f.site); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(f.site), "all") && (f.baseURL != "" || f.cookiesFile != "") {
		return errors.New("--base-url and --cookies-file apply to a single site")
	}
	switch f.backend {
	case "", "browser", "static":
	default:
		return fmt.Errorf("unknown backend %q", f.backend)
	}
	switch f.sink {
	case "json", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown sink %q", f.sink)
	}
	if f.reviews < 0 {
		return errors.New("--reviews cannot be negative")
	}
	if f.reviews > 0 && !f.details {
		return errors.New("--reviews needs --details")
	}
	return nil
}

func (f *crawlFlags) isHeadless() bool {
	return f.headless && !f.noHeadless
}

// resolveSites expands "all" into every registered site.
func resolveSites(name string) ([]string, error) {
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		return sites.Names(), nil
	}
	s, err := sites.Lookup(name)
	if err != nil {
		return nil, err
	}
	return []string{s.Name}, nil
}
