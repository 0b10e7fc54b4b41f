// Package model はドメインモデルを定義する。
package model

// WeatherReading は現在気温と当日の最低・最高気温を表す（単位は摂氏）。
type WeatherReading struct {
	Temp    float64
	TempMin float64
	TempMax float64
}

// Season は気温と日較差から決まる季節区分。
type Season string

const (
	SeasonWinter              Season = "Winter"
	SeasonLayeredWinter       Season = "LayeredWinter"
	SeasonSpringAutumn        Season = "SpringAutumn"
	SeasonLayeredSpringAutumn Season = "LayeredSpringAutumn"
	SeasonSummer              Season = "Summer"
	SeasonLayeredSummer       Season = "LayeredSummer"
)
