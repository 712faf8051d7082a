package credit

import "math"

// estimateTable maps (quality, size) to an estimated gpt-image-1 token cost,
// expressed directly in credits at the base (1x) multiplier. Values are
// calibrated against OpenAI's published per-quality token ranges.
var estimateTable = map[string]map[string]int{
	"low": {
		"1024x1024": 4,
		"1536x1024": 6,
		"1024x1536": 6,
		"":          5,
	},
	"medium": {
		"1024x1024": 16,
		"1536x1024": 24,
		"1024x1536": 24,
		"":          20,
	},
	"high": {
		"1024x1024": 62,
		"1536x1024": 94,
		"1024x1536": 94,
		"":          78,
	},
	"auto": {
		"1024x1024": 50,
		"":          75,
	},
}

// editSurcharge is added per quality when the request is an edit rather than
// a fresh generation, reflecting the extra input-image tokens gpt-image-1
// consumes during editing.
var editSurcharge = map[string]int{
	"low":    3,
	"medium": 3,
	"high":   20,
	"auto":   18,
}

// EstimateImageCredits returns the estimated per-image credit cost (before
// the n-image multiplier) for a given quality/size/edit combination, at the
// base 1x multiplier — the caller applies CreditMultiplier separately via
// CreditsFromCostUSD for the actual-cost path; this function backs the
// up-front /v1/credits/estimate endpoint and the pre-flight reservation.
func EstimateImageCredits(quality, size string, isEdit bool) int {
	sizes, ok := estimateTable[quality]
	if !ok {
		sizes = estimateTable["medium"]
	}
	base, ok := sizes[size]
	if !ok {
		base = sizes[""]
	}

	if isEdit {
		surcharge, ok := editSurcharge[quality]
		if !ok {
			surcharge = 3
		}
		base += surcharge
	}

	return base
}

// EstimateImageCreditsN is EstimateImageCredits multiplied across n images.
func EstimateImageCreditsN(quality, size string, isEdit bool, n int) int {
	if n < 1 {
		n = 1
	}
	return EstimateImageCredits(quality, size, isEdit) * n
}

// OpenAICostUSD reproduces OpenAI's published per-token pricing for
// gpt-image-1: $5/1M text input tokens, $10/1M image input tokens, $40/1M
// output tokens.
func OpenAICostUSD(textTokens, imageTokens, outputTokens int) float64 {
	textCost := float64(textTokens) / 1_000_000 * 5.0
	imageCost := float64(imageTokens) / 1_000_000 * 10.0
	outputCost := float64(outputTokens) / 1_000_000 * 40.0
	return textCost + imageCost + outputCost
}

// CreditsFromCostUSD converts an actual USD cost into a credit charge using
// the configured gross-margin multiplier, always rounding up and never
// charging less than 1 credit.
func CreditsFromCostUSD(costUSD, multiplier float64) int {
	credits := int(math.Ceil(costUSD * multiplier * 100))
	if credits < 1 {
		credits = 1
	}
	return credits
}

// ReconcileCharge scales a credit charge for n images down to the number of
// images actually stored out of the n requested (e.g. a partial provider
// failure that returned fewer images than asked for). Rounds up so a partial
// batch never under-recovers cost; the user pays less than one credit of
// rounding slack per reconciliation.
func ReconcileCharge(creditsToCharge, imagesStored, n int) int {
	if n <= 0 {
		return 0
	}
	if imagesStored >= n {
		return creditsToCharge
	}
	return (creditsToCharge*imagesStored + n - 1) / n
}
