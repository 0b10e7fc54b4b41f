package recommend

import (
	"time"

	"github.com/wearly/wearly/internal/model"
)

// Session は1ユーザー分のおすすめセッション。
// Headは提示中の衣服、Remainingは未提示の候補をランキング順に保持する。
// Remainingは作成時のランキングの部分列であり、要素の削除のみ行う。
type Session struct {
	Situation string
	Season    model.Season
	Head      model.Garment
	Remaining []model.Garment
	CreatedAt time.Time
}

// newSession はランキング結果からセッションを生成する。rankedは1件以上であること。
func newSession(situation string, season model.Season, ranked []model.Garment, now time.Time) *Session {
	remaining := make([]model.Garment, len(ranked)-1)
	copy(remaining, ranked[1:])
	return &Session{
		Situation: situation,
		Season:    season,
		Head:      ranked[0],
		Remaining: remaining,
		CreatedAt: now,
	}
}

// contains は衣服が提示中または残りの候補に含まれるかを返す。
func (s *Session) contains(garmentID string) bool {
	if s.Head.ID == garmentID {
		return true
	}
	for _, g := range s.Remaining {
		if g.ID == garmentID {
			return true
		}
	}
	return false
}

// excise は残りの候補から衣服を順序を保って取り除く。
func (s *Session) excise(garmentID string) {
	kept := s.Remaining[:0]
	for _, g := range s.Remaining {
		if g.ID != garmentID {
			kept = append(kept, g)
		}
	}
	s.Remaining = kept
}

// refresh はセッション内の同じ衣服をgで置き換える。順序は変えない。
func (s *Session) refresh(g model.Garment) {
	if s.Head.ID == g.ID {
		s.Head = g
	}
	for i := range s.Remaining {
		if s.Remaining[i].ID == g.ID {
			s.Remaining[i] = g
		}
	}
}

// advance は次の候補を提示中にする。残りの候補がない場合はfalseを返す。
func (s *Session) advance() bool {
	if len(s.Remaining) == 0 {
		return false
	}
	s.Head = s.Remaining[0]
	s.Remaining = s.Remaining[1:]
	return true
}

// snapshot は呼び出し側に返すためのコピーを作る。
func (s *Session) snapshot() *Session {
	out := *s
	out.Remaining = append([]model.Garment(nil), s.Remaining...)
	return &out
}
