package aggregation

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percentage returns part/whole*100 rounded to one decimal place.
// A zero whole yields 0.
func Percentage(part, whole int64) float64 {
	return scaled(part, whole, hundred, 1)
}

// ClickThroughRate returns clicks/views*100 rounded to two decimal places.
// No views yields 0.
func ClickThroughRate(clicks, views int64) float64 {
	return scaled(clicks, views, hundred, 2)
}

// Ratio returns num/den rounded to places. A zero den yields 0.
func Ratio(num, den int64, places int32) float64 {
	return scaled(num, den, decimal.NewFromInt(1), places)
}

func scaled(num, den int64, factor decimal.Decimal, places int32) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(num).
		Mul(factor).
		Div(decimal.NewFromInt(den)).
		Round(places).
		InexactFloat64()
}
