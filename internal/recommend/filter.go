// Package recommend は天気と状況に応じたおすすめの算出と、
// ユーザーごとのおすすめセッション（提示中の1着と残りの候補列）を管理する。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wearly/wearly/internal/model"
)

// ErrResolution はカテゴリ判定に失敗したことを表す。
// 呼び出し側は着用可能な衣服が0件として扱う（フェイルクローズ）。
var ErrResolution = errors.New("category resolution failed")

// Resolver は(状況, 季節区分)から着用可能なカテゴリを返す外部の判定器。
type Resolver interface {
	Resolve(ctx context.Context, situation string, season model.Season) ([]string, error)
}

// CategorySet は着用可能なカテゴリの集合。
type CategorySet map[string]struct{}

// NewCategorySet はカテゴリ一覧から集合を生成する。
func NewCategorySet(categories ...string) CategorySet {
	set := make(CategorySet, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Contains はカテゴリが集合に含まれるかを返す。
func (s CategorySet) Contains(category string) bool {
	_, ok := s[category]
	return ok
}

// EligibilityFilter は判定器に問い合わせて着用可能なカテゴリを決定する。
type EligibilityFilter struct {
	resolver Resolver
}

// NewEligibilityFilter はEligibilityFilterを生成する。
func NewEligibilityFilter(resolver Resolver) *EligibilityFilter {
	return &EligibilityFilter{resolver: resolver}
}

// Eligible は着用可能なカテゴリの集合を返す。
// 状況が空の場合や判定器の失敗時はErrResolutionをラップしたエラーを返す。
func (f *EligibilityFilter) Eligible(ctx context.Context, situation string, season model.Season) (CategorySet, error) {
	situation = strings.TrimSpace(situation)
	if situation == "" {
		return nil, fmt.Errorf("%w: situation is empty", ErrResolution)
	}

	categories, err := f.resolver.Resolve(ctx, situation, season)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return NewCategorySet(categories...), nil
}
