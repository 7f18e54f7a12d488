package core

import (
	"math"
	"strconv"
	"strings"
)

// FormatRupees renders an amount with Indian digit grouping and two decimals,
// e.g. 12345678.9 -> "₹1,23,45,678.90".
func FormatRupees(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	out := "₹" + groupIndian(whole) + "." + frac
	if v < 0 && s != "0.00" {
		return "-" + out
	}
	return out
}

// FormatCount renders a whole count with Indian digit grouping.
func FormatCount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	s := strconv.FormatFloat(math.Abs(math.Round(v)), 'f', 0, 64)
	if v < 0 && s != "0" {
		return "-" + groupIndian(s)
	}
	return groupIndian(s)
}

// groupIndian groups the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}

// FormatCompact shortens large values with Indian units (K, L for lakh,
// Cr for crore), e.g. 25000000 -> "2.5Cr". Used for chart axes.
func FormatCompact(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e7:
		return sign + trimZero(abs/1e7) + "Cr"
	case abs >= 1e5:
		return sign + trimZero(abs/1e5) + "L"
	case abs >= 1e3:
		return sign + trimZero(abs/1e3) + "K"
	default:
		return sign + trimZero(abs)
	}
}

func trimZero(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
