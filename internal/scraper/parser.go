package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
)

// Selectors for the listing page. The markup is an unversioned external
// contract; data-test-id attributes have proven more stable than classes.
const (
	cardSelector          = `li[id^="i"]`
	nameSelector          = `[data-test-id="product-card-name"]`
	priceSelector         = `[data-test-id="price-current-price"]`
	originalPriceSelector = `[data-test-id="price-prev-price"]`
	discountSelector      = `[data-test-id="price-discount-ratio"]`
)

// ParseProducts extracts candidate products from the rendered page HTML.
// Cards that cannot be parsed, or that lack a name or price, are skipped
// and counted; the skipped count is returned alongside the candidates.
// Only a document that fails to parse at all is an error.
func ParseProducts(htmlSrc string, base *url.URL) ([]model.ScrapedProduct, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, 0, fmt.Errorf("parse document: %w", err)
	}

	var products []model.ScrapedProduct
	skipped := 0

	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		p, ok := parseCard(card, base)
		if !ok {
			skipped++
			return
		}
		products = append(products, p)
	})

	return products, skipped, nil
}

func parseCard(card *goquery.Selection, base *url.URL) (model.ScrapedProduct, bool) {
	href, ok := card.Find("a").First().Attr("href")
	if !ok || href == "" {
		return model.ScrapedProduct{}, false
	}
	link := resolveLink(base, href)

	name := strings.TrimSpace(card.Find("h3").First().Text())
	if name == "" {
		name = strings.TrimSpace(card.Find(nameSelector).First().Text())
	}
	price := strings.TrimSpace(card.Find(priceSelector).First().Text())
	if name == "" || price == "" {
		return model.ScrapedProduct{}, false
	}

	imageURL, _ := card.Find("img").First().Attr("src")
	if imageURL == "" {
		// Lazily loaded images park the real source in data-src.
		imageURL, _ = card.Find("img").First().Attr("data-src")
	}

	return model.ScrapedProduct{
		ExternalID:    externalIDFromLink(link),
		Name:          name,
		Price:         price,
		OriginalPrice: strings.TrimSpace(card.Find(originalPriceSelector).First().Text()),
		DiscountRate:  strings.TrimSpace(card.Find(discountSelector).First().Text()),
		URL:           link,
		ImageURL:      imageURL,
	}, true
}

// externalIDFromLink derives the stable listing identifier: the segment
// after "-p-" in the last path element. Links that do not match the
// expected pattern fall back to the full URL, which is still stable
// across runs for the same listing.
func externalIDFromLink(link string) string {
	parts := strings.Split(link, "/")
	last := parts[len(parts)-1]
	if _, id, found := strings.Cut(last, "-p-"); found && id != "" {
		return id
	}
	return link
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
