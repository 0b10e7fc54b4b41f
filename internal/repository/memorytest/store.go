// Package memorytest はテスト専用のインメモリリポジトリを提供する。
// 本番コードからは参照しない。
// トランザクションは状態のコピーに対して実行し、成功時のみ置き換える。
package memorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/repository"
)

// Store は衣服とスタイル別スコアをメモリ上に保持する。
type Store struct {
	mu       sync.Mutex
	state    state
	nextSeq  int64
	failures Failures
}

// Failures はトランザクション内の各操作で返すエラーを指定する。障害注入用。
type Failures struct {
	ApplyScoreDelta error
	ListByUser      error
	Upsert          error
}

type state struct {
	users    map[string]bool
	garments map[string][]model.Garment // ユーザーごとにseq昇順
	prefs    map[string]map[string]model.StylePreference
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{
		state: state{
			users:    make(map[string]bool),
			garments: make(map[string][]model.Garment),
			prefs:    make(map[string]map[string]model.StylePreference),
		},
	}
}

// SetFailures は障害注入の設定を置き換える。
func (s *Store) SetFailures(f Failures) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = f
}

// AddUser はユーザーを登録する。
func (s *Store) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[userID] = true
}

// AddGarment は衣服を登録順の末尾に追加する。IDが空の場合は採番する。
func (s *Store) AddGarment(g model.Garment) model.Garment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(g)
}

func (s *Store) addLocked(g model.Garment) model.Garment {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	s.nextSeq++
	g.Seq = s.nextSeq
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	s.state.users[g.UserID] = true
	s.state.garments[g.UserID] = append(s.state.garments[g.UserID], g)
	return g
}

// FindByID はユーザーの衣服を取得する。見つからない場合はnilを返す。
func (s *Store) FindByID(_ context.Context, userID, garmentID string) (*model.Garment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.state.garments[userID] {
		if g.ID == garmentID {
			out := g
			return &out, nil
		}
	}
	return nil, nil
}

// ListByUser はユーザーの全衣服を登録順で返す。
func (s *Store) ListByUser(_ context.Context, userID string) ([]model.Garment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Garment{}, s.state.garments[userID]...), nil
}

// Create は衣服を作成する。
func (s *Store) Create(_ context.Context, g *model.Garment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*g = s.addLocked(*g)
	return nil
}

// UpdateLabels はカテゴリとスタイルを更新する。見つからない場合はnilを返す。
func (s *Store) UpdateLabels(_ context.Context, userID, garmentID, category, style string) (*model.Garment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.state.garments[userID]
	for i := range list {
		if list[i].ID == garmentID {
			list[i].Category = category
			list[i].Style = style
			list[i].UpdatedAt = time.Now()
			out := list[i]
			return &out, nil
		}
	}
	return nil, nil
}

// Delete は衣服を削除する。見つからない場合はfalseを返す。
func (s *Store) Delete(_ context.Context, userID, garmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.state.garments[userID]
	for i := range list {
		if list[i].ID == garmentID {
			s.state.garments[userID] = append(list[:i:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// StylePreferences はユーザーのスタイル別スコアをスタイル名順で返す。
func (s *Store) StylePreferences(userID string) []model.StylePreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs := make([]model.StylePreference, 0, len(s.state.prefs[userID]))
	for _, p := range s.state.prefs[userID] {
		prefs = append(prefs, p)
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].Style < prefs[j].Style })
	return prefs
}

// PreferenceRepo はStylePreferenceRepositoryとしてのビューを返す。
func (s *Store) PreferenceRepo() repository.StylePreferenceRepository {
	return prefView{s: s}
}

type prefView struct{ s *Store }

func (v prefView) ListByUser(_ context.Context, userID string) ([]model.StylePreference, error) {
	return v.s.StylePreferences(userID), nil
}

// WithinTx は状態のコピーに対してfnを実行し、成功した場合のみ反映する。
// トランザクションはStore全体で直列化される。
func (s *Store) WithinTx(_ context.Context, fn func(tx repository.FeedbackTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone(), failures: s.failures}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (st state) clone() state {
	out := state{
		users:    make(map[string]bool, len(st.users)),
		garments: make(map[string][]model.Garment, len(st.garments)),
		prefs:    make(map[string]map[string]model.StylePreference, len(st.prefs)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.garments {
		out.garments[k] = append([]model.Garment(nil), v...)
	}
	for k, v := range st.prefs {
		m := make(map[string]model.StylePreference, len(v))
		for style, p := range v {
			m[style] = p
		}
		out.prefs[k] = m
	}
	return out
}

type memTx struct {
	state    state
	failures Failures
}

func (t *memTx) LockUser(_ context.Context, userID string) (bool, error) {
	return t.state.users[userID], nil
}

func (t *memTx) ApplyScoreDelta(_ context.Context, userID, garmentID string, delta float64) (*model.Garment, error) {
	if t.failures.ApplyScoreDelta != nil {
		return nil, t.failures.ApplyScoreDelta
	}
	list := t.state.garments[userID]
	for i := range list {
		if list[i].ID == garmentID {
			list[i].PreferenceScore += delta
			list[i].FeedbackCount++
			list[i].UpdatedAt = time.Now()
			out := list[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memTx) ListByUser(_ context.Context, userID string) ([]model.Garment, error) {
	if t.failures.ListByUser != nil {
		return nil, t.failures.ListByUser
	}
	return append([]model.Garment{}, t.state.garments[userID]...), nil
}

func (t *memTx) UpsertStylePreference(_ context.Context, userID, style string, score float64) error {
	if t.failures.Upsert != nil {
		return t.failures.Upsert
	}
	m, ok := t.state.prefs[userID]
	if !ok {
		m = make(map[string]model.StylePreference)
		t.state.prefs[userID] = m
	}
	m[style] = model.StylePreference{UserID: userID, Style: style, Score: score, UpdatedAt: time.Now()}
	return nil
}

func (t *memTx) DeleteStylePreferencesExcept(_ context.Context, userID string, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	for style := range t.state.prefs[userID] {
		if !keepSet[style] {
			delete(t.state.prefs[userID], style)
		}
	}
	return nil
}

// compile-time interface check
var _ repository.GarmentRepository = (*Store)(nil)
var _ repository.FeedbackStore = (*Store)(nil)
