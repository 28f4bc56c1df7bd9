package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currencies whose minor unit equals the major unit (no decimal places).
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorToDecimal renders an amount in minor units as the decimal string the
// provider wire formats expect, respecting zero-decimal currencies.
func MinorToDecimal(amount int64, currency string) string {
	cur := strings.ToUpper(currency)
	if _, ok := zeroDecimalCurrencies[cur]; ok {
		return strconv.FormatInt(amount, 10)
	}
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// DecimalToMinor parses a provider decimal amount string back into minor
// units. The conversion is exact for two-decimal and zero-decimal currencies.
func DecimalToMinor(value, currency string) (int64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	cur := strings.ToUpper(currency)
	if _, ok := zeroDecimalCurrencies[cur]; ok {
		return int64(math.Round(f)), nil
	}
	return int64(math.Round(f * 100)), nil
}
