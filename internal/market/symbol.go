package market

import "strings"

// SpreadSuffix marks synthetic multi-leg spread symbols,
// e.g. "RB2110-1-HC2110-1-CJ.SPD".
const SpreadSuffix = ".SPD"

// IsSpread reports whether symbol names a synthetic spread instrument.
func IsSpread(symbol string) bool {
	return strings.HasSuffix(symbol, SpreadSuffix)
}

// UnderlyingSymbol extracts the product code from a contract symbol:
// the leading letters before the contract month, with any exchange suffix
// stripped ("rb2110.SHFE" -> "RB").
func UnderlyingSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		symbol = symbol[:i]
	}
	end := 0
	for end < len(symbol) {
		c := symbol[end]
		if c >= '0' && c <= '9' {
			break
		}
		end++
	}
	return strings.ToUpper(symbol[:end])
}
