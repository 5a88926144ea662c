package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-crawler/internal/models"
)

// MaxReviewPage is the largest page the ratings endpoint serves.
const MaxReviewPage = 59

var (
	productPathIDs = regexp.MustCompile(`/product/(\d+)/(\d+)`)
	slugIDs        = regexp.MustCompile(`-i\.(\d+)\.(\d+)`)
	scriptShopID   = regexp.MustCompile(`"?shop_?id"?\s*[:=]\s*"?(\d+)`)
	scriptItemID   = regexp.MustCompile(`"?item_?id"?\s*[:=]\s*"?(\d+)`)
	firstDigits    = regexp.MustCompile(`\d+`)
)

var reviewCardSelectors = []string{
	".shopee-product-rating",
	`[data-sqe="review"]`,
	".review-item",
	`[class*="review"]`,
	`[class*="rating-item"]`,
}

// ReviewIDs finds the shop and item ids of a product from its URL, falling back
// to ids embedded in page scripts.
func ReviewIDs(pageURL, html string) (shopID, itemID string, ok bool) {
	if m := productPathIDs.FindStringSubmatch(pageURL); m != nil {
		return m[1], m[2], true
	}
	if m := slugIDs.FindStringSubmatch(pageURL); m != nil {
		return m[1], m[2], true
	}
	if html == "" {
		return "", "", false
	}
	if m := scriptShopID.FindStringSubmatch(html); m != nil {
		shopID = m[1]
	}
	if m := scriptItemID.FindStringSubmatch(html); m != nil {
		itemID = m[1]
	}
	return shopID, itemID, shopID != "" && itemID != ""
}

// ReviewsURL builds the ratings API request for one page of reviews.
func ReviewsURL(base, shopID, itemID string, offset, limit int) string {
	if limit <= 0 || limit > MaxReviewPage {
		limit = MaxReviewPage
	}
	q := url.Values{}
	q.Set("itemid", itemID)
	q.Set("shopid", shopID)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("filter", "0")
	q.Set("flag", "1")
	q.Set("type", "0")
	return Origin(base) + "/api/v2/item/get_ratings?" + q.Encode()
}

// ReviewsPageURL is the HTML ratings page used when the API is unavailable.
func ReviewsPageURL(base, shopID, itemID string) string {
	return fmt.Sprintf("%s/product/%s/%s/ratings", Origin(base), shopID, itemID)
}

type ratingsPayload struct {
	Data *struct {
		Ratings []ratingEntry `json:"ratings"`
	} `json:"data"`
	Ratings []ratingEntry `json:"ratings"`
}

type ratingEntry struct {
	RatingStar     int      `json:"rating_star"`
	Comment        string   `json:"comment"`
	AuthorUsername string   `json:"author_username"`
	UserName       string   `json:"user_name"`
	CTime          int64    `json:"ctime"`
	Images         []string `json:"images"`
	ProductItems   []struct {
		ModelName string `json:"model_name"`
		Name      string `json:"name"`
	} `json:"product_items"`
}

// ParseRatingsResponse decodes a ratings API body. Both the wrapped and the bare
// ratings shapes are accepted.
func ParseRatingsResponse(body []byte, max int) ([]models.Review, error) {
	var payload ratingsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode ratings: %w", err)
	}
	entries := payload.Ratings
	if payload.Data != nil && len(payload.Data.Ratings) > 0 {
		entries = payload.Data.Ratings
	}

	reviews := make([]models.Review, 0, len(entries))
	for _, e := range entries {
		if max > 0 && len(reviews) >= max {
			break
		}
		r := models.Review{
			Rating:  e.RatingStar,
			Comment: strings.TrimSpace(e.Comment),
			User:    e.AuthorUsername,
			Time:    e.CTime,
			Images:  e.Images,
		}
		if r.User == "" {
			r.User = e.UserName
		}
		if len(e.ProductItems) > 0 {
			r.Variant = e.ProductItems[0].ModelName
			if r.Variant == "" {
				r.Variant = e.ProductItems[0].Name
			}
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// ExtractReviewsHTML reads review cards from a rendered ratings page.
func ExtractReviewsHTML(html string, max int) ([]models.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	cards := firstMatch(doc.Selection, reviewCardSelectors)
	if cards == nil {
		return nil, nil
	}

	var reviews []models.Review
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		var r models.Review
		if t := card.Find(`[class*="rating"], [class*="star"]`).First().Text(); t != "" {
			if d := firstDigits.FindString(t); d != "" {
				r.Rating, _ = strconv.Atoi(d)
			}
		}
		r.Comment = CleanText(card.Find(`[class*="comment"], [class*="content"], p`).First().Text())
		r.User = CleanText(card.Find(`[class*="user"], [class*="name"], a`).First().Text())
		r.TimeText = CleanText(card.Find(`[class*="time"], [class*="date"]`).First().Text())
		card.Find("img").Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if strings.Contains(strings.ToLower(src), "shopee") {
				r.Images = append(r.Images, src)
			}
		})
		if r.Rating == 0 && r.Comment == "" && r.User == "" {
			return true
		}
		reviews = append(reviews, r)
		return max <= 0 || len(reviews) < max
	})
	return reviews, nil
}
