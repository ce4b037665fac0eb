// Package collector scrapes the product pages into one plain-text file per topic.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const (
	DefaultBaseURL   = "https://www.idbi.bank.in/personal-banking/"
	DefaultOutputDir = "data"
	DefaultTimeout   = 10 * time.Second
	DefaultDelay     = time.Second
)

var ErrEmptyPage = errors.New("no text content")

type Config struct {
	BaseURL   string
	OutputDir string
	Timeout   time.Duration
	Delay     time.Duration
	UserAgent string
	Structure []Category
}

// Page is a fetched, not yet parsed, topic page.
type Page struct {
	Topic Topic
	URL   string
	Body  []byte
}

type Skip struct {
	Topic  Topic
	Reason string
}

type Report struct {
	Saved   []string
	Skipped []Skip
}

type Collector struct {
	client    *resty.Client
	baseURL   string
	outputDir string
	delay     time.Duration
	structure []Category
	log       logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, log logger.Logger) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Structure == nil {
		cfg.Structure = AccountStructure
	}
	if log == nil {
		log = logger.GetDefault()
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Collector{
		client:    client,
		baseURL:   cfg.BaseURL,
		outputDir: cfg.OutputDir,
		delay:     cfg.Delay,
		structure: cfg.Structure,
		log:       log.With("component", "collector"),
		sleep:     sleepContext,
	}
}

// Fetch downloads the page of a topic. Any non-2xx status is an error.
func (c *Collector) Fetch(ctx context.Context, topic Topic) (Page, error) {
	url := topic.URL(c.baseURL)
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return Page{}, fmt.Errorf("fetch %s: unexpected status %d %s", url, resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}
	return Page{Topic: topic, URL: url, Body: resp.Body()}, nil
}

// Normalize turns page HTML into newline separated text nodes.
func (c *Collector) Normalize(page Page) (domain.Document, error) {
	text, err := ExtractText(page.Body)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse %s: %w", page.URL, err)
	}
	if text == "" {
		return domain.Document{}, ErrEmptyPage
	}
	name := page.Topic.FileName()
	return domain.Document{
		ID:      strings.TrimSuffix(name, ".txt"),
		Source:  strings.TrimSuffix(name, ".txt"),
		Path:    filepath.Join(c.outputDir, name),
		Content: text,
	}, nil
}

func (c *Collector) Save(doc domain.Document) error {
	if err := os.MkdirAll(filepath.Dir(doc.Path), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(doc.Path, []byte(doc.Content), 0o600); err != nil {
		return fmt.Errorf("save %s: %w", doc.Path, err)
	}
	return nil
}

// Run scrapes every topic in order. Failures are logged and skipped; only
// context cancellation stops the batch.
func (c *Collector) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, topic := range Topics(c.structure) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if topic.IsCategory() {
			c.log.Info("processing category", "category", topic.Category)
		}
		path, err := c.collect(ctx, topic)
		if err != nil {
			c.log.Warn("skipped topic", "topic", topic.Title(), "err", err)
			report.Skipped = append(report.Skipped, Skip{Topic: topic, Reason: err.Error()})
		} else {
			c.log.Info("saved topic", "topic", topic.Title(), "file", path)
			report.Saved = append(report.Saved, path)
		}
		if !topic.IsCategory() && c.delay > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return report, err
			}
		}
	}
	c.log.Info("scrape finished", "saved", len(report.Saved), "skipped", len(report.Skipped))
	return report, nil
}

func (c *Collector) collect(ctx context.Context, topic Topic) (string, error) {
	page, err := c.Fetch(ctx, topic)
	if err != nil {
		return "", err
	}
	doc, err := c.Normalize(page)
	if err != nil {
		return "", err
	}
	if err := c.Save(doc); err != nil {
		return "", err
	}
	return doc.Path, nil
}

// ExtractText returns every non-blank text node, trimmed, one per line.
// Script, style and noscript content is dropped.
func ExtractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(parts, "\n"), nil
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if t := strings.TrimSpace(s.Text()); t != "" {
				*parts = append(*parts, t)
			}
		case "#comment":
		default:
			collectText(s, parts)
		}
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
