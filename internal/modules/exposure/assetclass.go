// Package exposure implements the correlation exposure controller: the
// pre-trade gate that caps aggregate exposure to any correlated asset group.
package exposure

import "strings"

// Static asset-class groups used when no trustworthy dynamic correlation
// group exists for a symbol. OTHER is the fallback bucket.
const GroupOther = "OTHER"

var assetClassGroups = map[string]string{
	// Large caps
	"BTC":  "BTC_ECOSYSTEM",
	"WBTC": "BTC_ECOSYSTEM",
	"ETH":  "ETH_ECOSYSTEM",
	"STETH": "ETH_ECOSYSTEM",
	"ARB":  "ETH_ECOSYSTEM",
	"OP":   "ETH_ECOSYSTEM",

	// Alt layer-1s
	"SOL":  "ALT_L1",
	"AVAX": "ALT_L1",
	"ADA":  "ALT_L1",
	"DOT":  "ALT_L1",
	"NEAR": "ALT_L1",
	"SUI":  "ALT_L1",

	// Meme coins
	"DOGE": "MEME_COINS",
	"SHIB": "MEME_COINS",
	"PEPE": "MEME_COINS",
	"WIF":  "MEME_COINS",
	"BONK": "MEME_COINS",

	// DeFi
	"UNI":  "DEFI",
	"AAVE": "DEFI",
	"MKR":  "DEFI",
	"CRV":  "DEFI",
	"LDO":  "DEFI",

	// Stablecoins
	"USDT": "STABLECOINS",
	"USDC": "STABLECOINS",
	"DAI":  "STABLECOINS",
}

// StaticGroup returns the asset-class group for a symbol, falling back to
// OTHER. Quote-currency suffixes (BTCUSDT, ETH/USD) are stripped first.
func StaticGroup(symbol string) string {
	base := baseSymbol(symbol)
	if group, ok := assetClassGroups[base]; ok {
		return group
	}
	return GroupOther
}

func baseSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexAny(s, "/-_"); i > 0 {
		s = s[:i]
	}
	for _, quote := range []string{"USDT", "USDC", "USD", "EUR", "BUSD"} {
		if len(s) > len(quote) && strings.HasSuffix(s, quote) {
			return s[:len(s)-len(quote)]
		}
	}
	return s
}
