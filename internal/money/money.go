// Package money handles BRL amounts as integer centavos so that no float
// arithmetic ever touches a balance.
package money

import (
	"fmt"
	"strings"
)

// Parse converts user-supplied amount text into centavos. Both comma and dot
// are accepted as decimal separator ("4,00" and "4.00" parse to 400). When
// both appear, the rightmost one is the decimal separator and the other is
// treated as a thousands separator. Digits beyond the second decimal place
// are rounded half-up.
func Parse(text string) (int64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount %q", text)
	}

	intPart, fracPart, err := splitDecimal(s)
	if err != nil {
		return 0, err
	}

	cents := int64(0)
	for _, r := range intPart {
		if cents > (1<<62)/10 {
			return 0, fmt.Errorf("amount %q out of range", text)
		}
		cents = cents*10 + int64(r-'0')
	}
	cents *= 100

	switch {
	case len(fracPart) == 1:
		cents += int64(fracPart[0]-'0') * 10
	case len(fracPart) >= 2:
		cents += int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			cents++
		}
	}
	return cents, nil
}

func splitDecimal(s string) (intPart, fracPart string, err error) {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	sep := -1
	if lastComma >= 0 && lastDot >= 0 {
		sep = max(lastComma, lastDot)
	} else if lastComma >= 0 {
		sep = lastComma
	} else if lastDot >= 0 {
		sep = lastDot
	}

	if sep >= 0 {
		intPart, fracPart = s[:sep], s[sep+1:]
	} else {
		intPart = s
	}
	intPart = strings.Map(dropSeparators, intPart)
	if intPart == "" && fracPart == "" {
		return "", "", fmt.Errorf("no digits in amount %q", s)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return "", "", fmt.Errorf("invalid amount %q", s)
	}
	return intPart, fracPart, nil
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' || r == ' ' {
		return -1
	}
	return r
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Format renders centavos in Brazilian notation, e.g. Format(400) == "R$4,00".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$%d,%02d", sign, cents/100, cents%100)
}

// FormatPlain renders centavos without the currency symbol, in the same shape
// Parse accepts, e.g. FormatPlain(400) == "4,00".
func FormatPlain(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}
