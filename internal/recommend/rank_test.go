package recommend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/wearly/wearly/internal/model"
)

func ids(gs []model.Garment) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRank(t *testing.T) {
	garments := []model.Garment{
		{ID: "A", Category: "shirt", PreferenceScore: 2},
		{ID: "B", Category: "shirt", PreferenceScore: 5},
		{ID: "C", Category: "jacket", PreferenceScore: 1},
		{ID: "D", Category: "shirt", PreferenceScore: 2},
		{ID: "E", Category: "pants", PreferenceScore: -3},
	}

	tests := []struct {
		name     string
		eligible CategorySet
		want     []string
	}{
		{"シャツのみ", NewCategorySet("shirt"), []string{"B", "A", "D"}},
		{"複数カテゴリ", NewCategorySet("shirt", "jacket", "pants"), []string{"B", "A", "D", "C", "E"}},
		{"該当なし", NewCategorySet("coat"), []string{}},
		{"空集合", NewCategorySet(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Rank(garments, tt.eligible))
			if !equalIDs(got, tt.want) {
				t.Errorf("Rank() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	garments := []model.Garment{
		{ID: "A", Category: "shirt", PreferenceScore: 1},
		{ID: "B", Category: "shirt", PreferenceScore: 9},
	}
	Rank(garments, NewCategorySet("shirt"))
	if garments[0].ID != "A" || garments[1].ID != "B" {
		t.Errorf("入力が変更されました: %v", ids(garments))
	}
}

func TestRank_StableForEqualScores(t *testing.T) {
	forward := []model.Garment{
		{ID: "X", Category: "shirt", PreferenceScore: 1},
		{ID: "Y", Category: "shirt", PreferenceScore: 1},
		{ID: "Z", Category: "shirt", PreferenceScore: 4},
	}
	reversed := []model.Garment{forward[2], forward[1], forward[0]}

	if got := ids(Rank(forward, NewCategorySet("shirt"))); !equalIDs(got, []string{"Z", "X", "Y"}) {
		t.Errorf("Rank(forward) = %v", got)
	}
	// 同点の並びだけが入力順に従って入れ替わる
	if got := ids(Rank(reversed, NewCategorySet("shirt"))); !equalIDs(got, []string{"Z", "Y", "X"}) {
		t.Errorf("Rank(reversed) = %v", got)
	}
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, situation string, season model.Season) ([]string, error)
	calls     atomic.Int32
}

func (f *fakeResolver) Resolve(ctx context.Context, situation string, season model.Season) ([]string, error) {
	f.calls.Add(1)
	return f.resolveFn(ctx, situation, season)
}

func TestEligibilityFilter(t *testing.T) {
	t.Run("判定結果を集合にする", func(t *testing.T) {
		r := &fakeResolver{resolveFn: func(_ context.Context, situation string, season model.Season) ([]string, error) {
			if situation != "office" || season != model.SeasonSummer {
				t.Errorf("Resolve(%q, %q)", situation, season)
			}
			return []string{"shirt", "pants"}, nil
		}}
		set, err := NewEligibilityFilter(r).Eligible(context.Background(), " office ", model.SeasonSummer)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !set.Contains("shirt") || !set.Contains("pants") || set.Contains("coat") {
			t.Errorf("set = %v", set)
		}
	})

	t.Run("空の状況は判定器を呼ばずに失敗する", func(t *testing.T) {
		r := &fakeResolver{resolveFn: func(context.Context, string, model.Season) ([]string, error) {
			return []string{"shirt"}, nil
		}}
		_, err := NewEligibilityFilter(r).Eligible(context.Background(), "  ", model.SeasonWinter)
		if !errors.Is(err, ErrResolution) {
			t.Errorf("err = %v, want ErrResolution", err)
		}
		if r.calls.Load() != 0 {
			t.Errorf("calls = %d, want 0", r.calls.Load())
		}
	})

	t.Run("判定器の失敗はErrResolution", func(t *testing.T) {
		cause := errors.New("timeout")
		r := &fakeResolver{resolveFn: func(context.Context, string, model.Season) ([]string, error) {
			return nil, cause
		}}
		_, err := NewEligibilityFilter(r).Eligible(context.Background(), "office", model.SeasonWinter)
		if !errors.Is(err, ErrResolution) {
			t.Errorf("err = %v, want ErrResolution", err)
		}
	})
}
