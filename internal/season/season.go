// Package season は気温から季節区分（重ね着区分を含む）を判定する。
package season

import (
	"fmt"
	"math"

	"github.com/wearly/wearly/internal/model"
)

// 判定しきい値
const (
	// WinterMaxTemp 以下の気温は冬の区分とする。
	WinterMaxTemp = 16.0
	// SpringAutumnMaxTemp 以下（かつWinterMaxTempより高い）の気温は春秋の区分とする。
	SpringAutumnMaxTemp = 22.0
	// LayeredDiff 以上の寒暖差がある場合は重ね着区分とする。
	LayeredDiff = 10.0
)

// Classify は現在気温・最低気温・最高気温から季節区分を返す。
// 副作用を持たない純粋関数であり、非有限値（NaN, ±Inf）のみエラーとする。
func Classify(temp, tempMin, tempMax float64) (model.Season, error) {
	for _, v := range []float64{temp, tempMin, tempMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", model.NewValidationError(fmt.Sprintf("気温が有限値ではありません: %v", v))
		}
	}

	layered := tempMax-tempMin >= LayeredDiff

	switch {
	case temp <= WinterMaxTemp:
		if layered {
			return model.SeasonLayeredWinter, nil
		}
		return model.SeasonWinter, nil
	case temp <= SpringAutumnMaxTemp:
		if layered {
			return model.SeasonLayeredSpringAutumn, nil
		}
		return model.SeasonSpringAutumn, nil
	default:
		if layered {
			return model.SeasonLayeredSummer, nil
		}
		return model.SeasonSummer, nil
	}
}

// ClassifyReading は天気情報から季節区分を返す。
func ClassifyReading(r *model.WeatherReading) (model.Season, error) {
	if r == nil {
		return "", model.NewValidationError("天気情報がありません")
	}
	return Classify(r.Temp, r.TempMin, r.TempMax)
}
