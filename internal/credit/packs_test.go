package credit

import "testing"

func TestFindPack(t *testing.T) {
	pack, ok := FindPack("enterprise")
	if !ok {
		t.Fatal("expected enterprise pack to be found")
	}
	if pack.TotalCredits() != 5000 {
		t.Errorf("enterprise TotalCredits() = %d, want 5000", pack.TotalCredits())
	}

	if _, ok := FindPack("nonexistent"); ok {
		t.Error("expected nonexistent pack lookup to fail")
	}
}

func TestIsCryptoEligible(t *testing.T) {
	if IsCryptoEligible("starter") {
		t.Error("expected starter pack to be crypto-ineligible")
	}
	if !IsCryptoEligible("basic") {
		t.Error("expected basic pack to be crypto-eligible")
	}
}

func TestPacks_AllPriced(t *testing.T) {
	for _, p := range Packs {
		if p.PriceUSDCents <= 0 {
			t.Errorf("pack %q has non-positive price", p.ID)
		}
	}
}
