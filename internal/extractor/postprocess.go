package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"priceowl/crawlworker/helpers"
)

var (
	priceNumberRe = regexp.MustCompile(`[\d.,]+`)
	penceSuffixRe = regexp.MustCompile(`^\s*([\d,]+)\s*[pP]\s*$`)
	packRe        = regexp.MustCompile(`(?i)\b(\d+)\s*[x×]\s*(\d+(?:\.\d+)?)\s*(kg|g|ml|l|lb|lbs|oz)\b`)
	weightRe      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(kg|g|ml|l|lb|lbs|oz)\b`)
)

// gramsPerUnit converts free-text units to grams (liquids by water weight)
var gramsPerUnit = map[string]float64{
	"kg":  1000,
	"g":   1,
	"l":   1000,
	"ml":  1,
	"lb":  454,
	"lbs": 454,
	"oz":  28,
}

// ParsePrice normalizes a raw price string to integer minor currency units.
// Handles symbol-prefixed ("£12.99"), suffix-pence ("99p") and comma-decimal
// ("10,99") forms. Returns nil when no price can be parsed - an unparsable
// price is skipped, never treated as zero.
func ParsePrice(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if m := penceSuffixRe.FindStringSubmatch(raw); m != nil {
		pence, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return nil
		}
		return &pence
	}

	num := priceNumberRe.FindString(raw)
	if num == "" {
		return nil
	}

	value, err := strconv.ParseFloat(normalizeDecimal(num), 64)
	if err != nil {
		return nil
	}
	minor := int64(math.Round(value * 100))
	if minor < 0 {
		return nil
	}
	return &minor
}

// normalizeDecimal rewrites a localized numeric string into strconv form.
// When both separators appear the rightmost one is the decimal point; a lone
// comma followed by at most two digits is a decimal comma, otherwise a
// thousands separator.
func normalizeDecimal(num string) string {
	lastComma := strings.LastIndex(num, ",")
	lastDot := strings.LastIndex(num, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(num, ",") == 1 && len(num)-lastComma-1 <= 2 {
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	}
	return num
}

// ParseWeight extracts a unit weight in grams and a pack quantity from
// free-text (typically a product title). "12 x 400g" yields (400, 12);
// "2.5kg" yields (2500, 1). Returns (0, 1) when nothing is recognized.
func ParseWeight(text string) (grams int, quantity int) {
	quantity = 1

	if m := packRe.FindStringSubmatch(text); m != nil {
		qty, err := strconv.Atoi(m[1])
		if err == nil && qty > 0 {
			quantity = qty
		}
		grams = toGrams(m[2], m[3])
		return grams, quantity
	}

	if m := weightRe.FindStringSubmatch(text); m != nil {
		grams = toGrams(m[1], m[2])
	}
	return grams, quantity
}

func toGrams(amount, unit string) int {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	factor, ok := gramsPerUnit[strings.ToLower(unit)]
	if !ok {
		return 0
	}
	return int(math.Round(v * factor))
}

// ProductExternalID picks a stable external id for a product: the
// source-provided id when present, else the URL's last path segment.
// Determinism here is what makes downstream upserts idempotent.
func ProductExternalID(explicit, url string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return helpers.LastPathSegment(url)
}

// ReviewExternalID picks a stable external id for a review: the
// source-provided id when present, else a content hash over author, body
// and document position so re-crawls do not duplicate.
func ReviewExternalID(explicit, author, body string, position int) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", author, body, position)))
	return hex.EncodeToString(sum[:8])
}
