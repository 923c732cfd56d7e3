package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.English)

// FormatINR renders an amount with grouping, e.g. ₹1,250.00.
func FormatINR(amount float64) string {
	return inrPrinter.Sprintf("₹%.2f", amount)
}

// ToPaise converts rupees to the integer minor unit the gateway expects.
func ToPaise(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
