package recommend

import (
	"sort"

	"github.com/wearly/wearly/internal/model"
)

// Rank は着用可能なカテゴリの衣服だけを残し、PreferenceScoreの降順に並べる。
// 同点の衣服は入力順（衣服ストアの登録順）を保つ。入力のスライスは変更しない。
func Rank(garments []model.Garment, eligible CategorySet) []model.Garment {
	ranked := make([]model.Garment, 0, len(garments))
	for _, g := range garments {
		if eligible.Contains(g.Category) {
			ranked = append(ranked, g)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PreferenceScore > ranked[j].PreferenceScore
	})
	return ranked
}
