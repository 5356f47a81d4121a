package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// Lifetime points needed to reach each tier.
const (
	SilverThreshold   = 2000
	GoldThreshold     = 5000
	PlatinumThreshold = 10000
)

var tierRank = map[domain.Tier]int{
	domain.TierBronze:   0,
	domain.TierSilver:   1,
	domain.TierGold:     2,
	domain.TierPlatinum: 3,
}

// TierFor maps lifetime points onto a tier.
func TierFor(lifetimePoints int64) domain.Tier {
	switch {
	case lifetimePoints >= PlatinumThreshold:
		return domain.TierPlatinum
	case lifetimePoints >= GoldThreshold:
		return domain.TierGold
	case lifetimePoints >= SilverThreshold:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

// NextTier returns the tier implied by lifetime points, never lower than current.
// Tiers are earned for good; correcting lifetime points does not demote a user.
func NextTier(current domain.Tier, lifetimePoints int64) domain.Tier {
	computed := TierFor(lifetimePoints)
	if rank, ok := tierRank[current]; ok && rank > tierRank[computed] {
		return current
	}
	return computed
}

// AddPoints credits reward points and recomputes the tier.
func AddPoints(w *domain.Wallet, points int64) error {
	if points <= 0 {
		return domain.NewValidationError("points", "must be greater than zero")
	}
	w.Points += points
	w.LifetimePoints += points
	w.Tier = NextTier(w.Tier, w.LifetimePoints)
	return nil
}

// RedeemPoints converts points into wallet balance at ratio and returns the
// credited cash value. Both the point deduction and the balance credit are
// applied, or neither.
func RedeemPoints(w *domain.Wallet, points int64, ratio decimal.Decimal, minPoints int64, maxBalance decimal.Decimal) (decimal.Decimal, error) {
	if points <= 0 {
		return decimal.Zero, domain.NewValidationError("points", "must be greater than zero")
	}
	if w.Points < points {
		return decimal.Zero, domain.ErrInsufficientPoints
	}
	if points < minPoints {
		return decimal.Zero, domain.ErrBelowMinimum
	}
	cash := Round(decimal.NewFromInt(points).Mul(ratio))
	if err := AddBalance(w, cash, maxBalance); err != nil {
		return decimal.Zero, err
	}
	w.Points -= points
	return cash, nil
}

func (p Policy) RedeemPoints(w *domain.Wallet, points int64) (decimal.Decimal, error) {
	return RedeemPoints(w, points, p.RedemptionRatio, p.MinRedeemPoints, p.MaxWalletBalance)
}

// DeductBalance debits amount from the wallet.
func DeductBalance(w *domain.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount", "must be greater than zero")
	}
	if w.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	w.Balance = w.Balance.Sub(amount)
	w.TotalSpent = w.TotalSpent.Add(amount)
	return nil
}

// AddBalance credits amount to the wallet. A positive maxBalance caps the
// resulting balance.
func AddBalance(w *domain.Wallet, amount, maxBalance decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.NewValidationError("amount", "must be greater than zero")
	}
	next := w.Balance.Add(amount)
	if maxBalance.IsPositive() && next.GreaterThan(maxBalance) {
		return domain.ErrBalanceLimitExceeded
	}
	w.Balance = next
	w.TotalDeposited = w.TotalDeposited.Add(amount)
	return nil
}

func (p Policy) AddBalance(w *domain.Wallet, amount decimal.Decimal) error {
	return AddBalance(w, amount, p.MaxWalletBalance)
}
