package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

const maxStructuredDepth = 5

var listKeys = map[string]bool{
	"items":      true,
	"products":   true,
	"item_basic": true,
	"item_list":  true,
}

var hydrationMarkers = []string{"__APP_INITIAL_STATE__", "_SSR_HYDRATED_DATA", "__NEXT_DATA__"}

// StructuredStrategy reads records from hydration state and LD+JSON blocks
// embedded in the page.
type StructuredStrategy struct {
	BaseURL  string
	Currency string
	// PriceDivisor scales integer prices stored in minor units. Zero or one leaves
	// prices untouched.
	PriceDivisor float64
	// ImageBase prefixes image ids that are not URLs.
	ImageBase string
}

func (s *StructuredStrategy) Name() string { return "structured" }

func (s *StructuredStrategy) Extract(ctx context.Context, in Input) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base := s.BaseURL
	if base == "" {
		base = in.URL
	}

	var products []models.Product
	for _, blob := range hydrationBlobs(doc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ok := decodeJSON(blob)
		if !ok {
			continue
		}
		for _, item := range findItems(data, 0) {
			if p := s.fromItem(item, base); p != nil {
				products = append(products, *p)
			}
		}
	}

	for _, node := range LDNodes(doc) {
		switch ldType(node) {
		case "Product":
			if p := ProductFromLD(node, base, s.Currency); p != nil {
				products = append(products, *p)
			}
		case "ItemList":
			products = append(products, s.fromItemList(node, base)...)
		}
	}

	return dedup(products), nil
}

// hydrationBlobs returns the JSON text of every script that may carry page state.
func hydrationBlobs(doc *goquery.Document) []string {
	var blobs []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		id, _ := s.Attr("id")
		text := s.Text()
		switch {
		case typ == "application/ld+json":
			return
		case typ == "application/json", id == "__NEXT_DATA__":
		case containsAny(text, hydrationMarkers):
		default:
			return
		}
		if blob := objectSpan(text); blob != "" {
			blobs = append(blobs, blob)
		}
	})
	return blobs
}

// objectSpan returns text from the first "{" to the last "}".
func objectSpan(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func decodeJSON(blob string) (interface{}, bool) {
	dec := json.NewDecoder(strings.NewReader(blob))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// findItems walks v looking for product-like objects. Lists under well known keys
// are taken whole; other lists contribute objects that carry a name.
func findItems(v interface{}, depth int) []map[string]interface{} {
	if depth > maxStructuredDepth {
		return nil
	}
	var out []map[string]interface{}
	switch node := v.(type) {
	case map[string]interface{}:
		for key, child := range node {
			if list, ok := child.([]interface{}); ok && listKeys[key] {
				for _, el := range list {
					if m, ok := el.(map[string]interface{}); ok {
						out = append(out, m)
					}
				}
				continue
			}
			out = append(out, findItems(child, depth+1)...)
		}
	case []interface{}:
		for _, el := range node {
			if m, ok := el.(map[string]interface{}); ok && looksLikeItem(m) {
				out = append(out, m)
				continue
			}
			out = append(out, findItems(el, depth+1)...)
		}
	}
	return out
}

func looksLikeItem(m map[string]interface{}) bool {
	for _, k := range []string{"name", "item_name", "title", "item_basic"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func (s *StructuredStrategy) fromItem(item map[string]interface{}, base string) *models.Product {
	basic, _ := item["item_basic"].(map[string]interface{})
	lookup := func(keys ...string) interface{} {
		for _, src := range []map[string]interface{}{item, basic} {
			if src == nil {
				continue
			}
			for _, k := range keys {
				if v, ok := src[k]; ok && !emptyValue(v) {
					return v
				}
			}
		}
		return nil
	}

	name := CleanText(stringOf(lookup("name", "item_name", "title")))
	if name == "" {
		return nil
	}
	p := models.NewProduct(name)

	if n, ok := numberOf(lookup("price", "price_min", "price_max")); ok && n > 0 {
		if s.PriceDivisor > 1 {
			n /= s.PriceDivisor
		}
		currency := s.Currency
		if c := stringOf(lookup("currency")); c != "" {
			currency = c
		}
		p.SetPrice(currency+formatAmount(n), n, currency)
	}

	if n, ok := numberOf(lookup("rating")); ok {
		p.SetRating(clampRating(n))
	} else if r, ok := lookup("item_rating").(map[string]interface{}); ok {
		if n, ok := numberOf(r["rating_star"]); ok {
			p.SetRating(clampRating(n))
		}
	}

	if n, ok := numberOf(lookup("review_count", "cmt_count")); ok {
		p.SetReviewCount(strconv.Itoa(int(n)), int(n))
	}

	switch img := lookup("image", "image_url").(type) {
	case string:
		p.ImageURL = s.imageURL(img, base)
	case []interface{}:
		if len(img) > 0 {
			p.ImageURL = s.imageURL(stringOf(img[0]), base)
		}
	}

	itemID := idOf(lookup("itemid", "item_id"))
	shopID := idOf(lookup("shopid", "shop_id"))
	switch {
	case itemID != "" && shopID != "":
		p.DetailURL = Origin(base) + "/product/" + shopID + "/" + itemID
	default:
		if u := stringOf(lookup("canonicalUrl", "url", "product_url")); u != "" {
			p.DetailURL = ResolveURL(base, u)
		}
	}

	if sold := stringOf(lookup("historical_sold", "sold")); sold != "" {
		p.SoldCount = sold
	}
	if shop := stringOf(lookup("shop_name")); shop != "" {
		p.ShopName = shop
	}
	return p
}

func (s *StructuredStrategy) imageURL(img, base string) string {
	if img == "" {
		return ""
	}
	if strings.HasPrefix(img, "http") || strings.HasPrefix(img, "//") || strings.HasPrefix(img, "/") {
		return ResolveURL(base, img)
	}
	if s.ImageBase != "" {
		return strings.TrimRight(s.ImageBase, "/") + "/" + img
	}
	return img
}

func (s *StructuredStrategy) fromItemList(node map[string]interface{}, base string) []models.Product {
	elements, _ := node["itemListElement"].([]interface{})
	var out []models.Product
	for _, el := range elements {
		m, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		if inner, ok := m["item"].(map[string]interface{}); ok {
			m = inner
		}
		if p := ProductFromLD(m, base, s.Currency); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// LDNodes returns every object found in LD+JSON blocks, flattening top level
// arrays and @graph lists.
func LDNodes(doc *goquery.Document) []map[string]interface{} {
	var nodes []map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		v, ok := decodeJSON(strings.TrimSpace(s.Text()))
		if !ok {
			return
		}
		var walk func(v interface{})
		walk = func(v interface{}) {
			switch n := v.(type) {
			case []interface{}:
				for _, el := range n {
					walk(el)
				}
			case map[string]interface{}:
				if graph, ok := n["@graph"].([]interface{}); ok {
					walk(graph)
					return
				}
				nodes = append(nodes, n)
			}
		}
		walk(v)
	})
	return nodes
}

func ldType(node map[string]interface{}) string {
	switch t := node["@type"].(type) {
	case string:
		return t
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && (s == "Product" || s == "ItemList") {
				return s
			}
		}
	}
	return ""
}

// ProductFromLD maps a schema.org Product (or ListItem) onto a record.
func ProductFromLD(node map[string]interface{}, base, currency string) *models.Product {
	name := CleanText(stringOf(node["name"]))
	if name == "" {
		return nil
	}
	p := models.NewProduct(name)

	offers := node["offers"]
	if list, ok := offers.([]interface{}); ok && len(list) > 0 {
		offers = list[0]
	}
	if o, ok := offers.(map[string]interface{}); ok {
		price, ok := numberOf(o["price"])
		if !ok {
			price, ok = numberOf(o["lowPrice"])
		}
		if ok && price > 0 {
			cur := currency
			if code := stringOf(o["priceCurrency"]); code != "" && cur == "" {
				cur = code
			}
			p.SetPrice(FormatPrice(formatAmount(price), cur), price, cur)
		}
	}

	if agg, ok := node["aggregateRating"].(map[string]interface{}); ok {
		if n, ok := numberOf(agg["ratingValue"]); ok {
			p.SetRating(clampRating(n))
		}
		if n, ok := numberOf(agg["reviewCount"]); ok {
			p.SetReviewCount(strconv.Itoa(int(n)), int(n))
		} else if n, ok := numberOf(agg["ratingCount"]); ok {
			p.SetReviewCount(strconv.Itoa(int(n)), int(n))
		}
	}

	switch img := node["image"].(type) {
	case string:
		p.ImageURL = ResolveURL(base, img)
	case []interface{}:
		for _, v := range img {
			if u := ResolveURL(base, stringOf(v)); u != "" {
				p.Images = append(p.Images, u)
			}
		}
		if len(p.Images) > 0 {
			p.ImageURL = p.Images[0]
		}
	}

	if u := stringOf(node["url"]); u != "" {
		p.DetailURL = ResolveURL(base, u)
	}
	if d := CleanText(stringOf(node["description"])); d != "" {
		p.Description = d
	}
	return p
}

func dedup(products []models.Product) []models.Product {
	seen := make(map[models.Key]struct{}, len(products))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func emptyValue(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case json.Number:
		return x.String() == "0"
	}
	return false
}

func stringOf(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}

func numberOf(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case string:
		return ParsePrice(x)
	}
	return 0, false
}

func idOf(v interface{}) string {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case string:
		return x
	}
	return ""
}

// formatAmount renders n with two decimals and thousands separators.
func formatAmount(n float64) string {
	s := strconv.FormatFloat(n, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
