package credit

import "github.com/guitaripod/pixie/internal/models"

// Packs is the static purchasable bundle catalogue, in display order.
var Packs = []models.CreditPack{
	{
		ID:            "starter",
		Name:          "Starter",
		Credits:       150,
		BonusCredits:  0,
		PriceUSDCents: 299,
		Description:   "Perfect for trying out (~37 low or 9 medium images)",
	},
	{
		ID:            "basic",
		Name:          "Basic",
		Credits:       475,
		BonusCredits:  25,
		PriceUSDCents: 999,
		Description:   "Great for regular use (~31 medium images)",
	},
	{
		ID:            "popular",
		Name:          "Popular",
		Credits:       1136,
		BonusCredits:  114,
		PriceUSDCents: 2499,
		Description:   "Our most popular pack! (~78 medium images)",
	},
	{
		ID:            "business",
		Name:          "Business",
		Credits:       2174,
		BonusCredits:  326,
		PriceUSDCents: 4999,
		Description:   "For power users (~156 medium images)",
	},
	{
		ID:            "enterprise",
		Name:          "Enterprise",
		Credits:       4167,
		BonusCredits:  833,
		PriceUSDCents: 9999,
		Description:   "Maximum value! (~312 medium images)",
	},
}

// cryptoIneligible lists packs too small for a NOWPayments crypto charge to
// clear the processor's minimum transaction amount.
var cryptoIneligible = map[string]bool{
	"starter": true,
}

// FindPack looks up a pack by ID.
func FindPack(id string) (models.CreditPack, bool) {
	for _, p := range Packs {
		if p.ID == id {
			return p, true
		}
	}
	return models.CreditPack{}, false
}

// IsCryptoEligible reports whether a pack may be purchased via the crypto backend.
func IsCryptoEligible(packID string) bool {
	return !cryptoIneligible[packID]
}
