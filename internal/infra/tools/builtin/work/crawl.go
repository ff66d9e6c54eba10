package work

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"offload/internal/domain/agent/background"
	"offload/internal/domain/agent/ports"
	"offload/internal/infra/httpclient"
	"offload/internal/infra/tools/builtin/shared"
)

const (
	CrawlToolName = "crawl"

	defaultMaxLinks = 10
	crawlTimeout    = 30 * time.Second
)

type crawl struct {
	shared.BaseTool
	client *http.Client
	policy httpclient.URLValidationOptions
}

// NewCrawl creates a work tool that fetches one page and extracts its title,
// headings and links. A nil client uses httpclient.New with a 30s timeout.
func NewCrawl(client *http.Client, policy httpclient.URLValidationOptions) *crawl {
	if client == nil {
		client = httpclient.New(crawlTimeout, nil)
	}
	return &crawl{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        CrawlToolName,
				Description: "Fetch a web page and summarize its title, headings and outgoing links.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"url":       {Type: "string", Description: "Absolute http(s) URL to fetch."},
						"max_links": {Type: "integer", Description: "Maximum number of links to list (default 10)."},
					},
					Required: []string{"url"},
				},
			},
			ports.ToolMetadata{
				Name:     CrawlToolName,
				Version:  "1.0.0",
				Category: "work",
				Tags:     []string{"work", "web"},
			},
		),
		client: client,
		policy: policy,
	}
}

func (t *crawl) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rawURL, errResult := shared.RequireStringArg(call.Arguments, call.ID, "url")
	if errResult != nil {
		return errResult, nil
	}
	base, err := httpclient.ValidateOutboundURL(rawURL, t.policy)
	if err != nil {
		return shared.ToolError(call.ID, "%v", err)
	}
	maxLinks := defaultMaxLinks
	if v, ok := shared.IntArg(call.Arguments, "max_links"); ok && v >= 0 {
		maxLinks = v
	}

	background.ReportOperation(ctx, "fetch")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return shared.ToolError(call.ID, "build request: %v", err)
	}
	req.Header.Set("User-Agent", "offload-crawl/1.0")
	resp, err := t.client.Do(req)
	if err != nil {
		return shared.ToolError(call.ID, "fetch %s: %v", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return shared.ToolError(call.ID, "fetch %s: unexpected status %d", base, resp.StatusCode)
	}

	background.ReportOperation(ctx, "parse")
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return shared.ToolError(call.ID, "parse %s: %v", base, err)
	}

	page := extractPage(doc, base, maxLinks)
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: page.String(),
		Metadata: map[string]any{
			"url":        base.String(),
			"title":      page.Title,
			"link_count": len(page.Links),
		},
	}, nil
}

type crawledPage struct {
	URL      string
	Title    string
	Headings []string
	Links    []string
}

func extractPage(doc *goquery.Document, base *url.URL, maxLinks int) crawledPage {
	page := crawledPage{
		URL:   base.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			page.Headings = append(page.Headings, text)
		}
	})
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(page.Links) >= maxLinks {
			return false
		}
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		page.Links = append(page.Links, link)
		return true
	})
	return page
}

func (p crawledPage) String() string {
	var b strings.Builder
	title := p.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&b, "%s\n%s\n", title, p.URL)
	if len(p.Headings) > 0 {
		b.WriteString("\nHeadings:\n")
		for _, h := range p.Headings {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	if len(p.Links) > 0 {
		b.WriteString("\nLinks:\n")
		for _, l := range p.Links {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
