package psnstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"
	"wishwatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/psnstore")

var (
	// ErrNotFound means the identifier was well-formed but the
	// storefront has nothing at that address.
	ErrNotFound = fmt.Errorf("the store has nothing under this id")
	// ErrPageLayout means the page was served but none of the known
	// layout strategies could pull a complete record out of it.
	ErrPageLayout = fmt.Errorf("could not recognize the layout of the store page")
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	// Locale used when Extract is called with an empty locale.
	Locale string
}

type ClientOptions struct {
	// defaults to https://store.playstation.com
	BaseUrl string
	// defaults to ru-ru
	Locale string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = fmt.Sprintf("https://%s", Host)
	}
	if opts.Locale == "" {
		opts.Locale = "ru-ru"
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/psnstore/http")

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		Locale:  opts.Locale,
	}, nil
}

func pagePath(id Identifier, locale string) string {
	return fmt.Sprintf("/%s/%s/%s", locale, id.Kind, id.Value)
}

// a strategy inspects one known revision of the detail page layout and
// either produces a record or reports that the layout does not apply.
// strategies are tried in order, first hit wins, so adding support for
// a new storefront revision means appending one entry here.
type strategy interface {
	name() string
	extract(doc *goquery.Document, id Identifier, locale string) (ProductRecord, bool)
}

var strategies = []strategy{
	cacheStrategy{},
	domStrategy{},
}

// Extract fetches the detail page for id and pulls a ProductRecord out
// of it. An empty locale falls back to the client default. The poster
// may require one extra fetch of the companion concept page when the
// product's own media carries no MASTER image.
func (c *Client) Extract(ctx context.Context, id Identifier, locale string) (ProductRecord, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()

	if locale == "" {
		locale = c.Locale
	}
	span.SetAttributes(
		attribute.String("kind", id.Kind.String()),
		attribute.String("id", id.Value),
		attribute.String("locale", locale),
	)

	doc, err := c.fetchPage(ctx, pagePath(id, locale))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ProductRecord{}, err
	}

	for _, s := range strategies {
		record, ok := s.extract(doc, id, locale)
		if !ok {
			continue
		}
		span.SetAttributes(attribute.String("strategy", s.name()))

		if record.PosterUrl == "" && record.ConceptId != "" {
			poster, err := c.conceptPoster(ctx, record.ConceptId, locale)
			if err != nil {
				span.RecordError(err)
			}
			record.PosterUrl = poster
		}
		// a partial record would poison the catalog silently, let the
		// remaining strategies have a go at the page instead
		if record.Name == "" || record.PosterUrl == "" {
			continue
		}
		return record, nil
	}

	err = ErrPageLayout
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return ProductRecord{}, err
}

func (c *Client) fetchPage(ctx context.Context, path string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("store page returned status %d", res.StatusCode())
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}

// conceptPoster resolves the MASTER image from the companion concept
// page. Product pages for older titles reference their artwork through
// the concept's media list instead of carrying their own.
func (c *Client) conceptPoster(ctx context.Context, conceptId, locale string) (string, error) {
	ctx, span := tracer.Start(ctx, "conceptPoster")
	defer span.End()

	id := Identifier{Kind: KindConcept, Value: conceptId}
	doc, err := c.fetchPage(ctx, pagePath(id, locale))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	for _, s := range strategies {
		record, ok := s.extract(doc, id, locale)
		if ok && record.PosterUrl != "" {
			return record.PosterUrl, nil
		}
	}
	return "", nil
}
