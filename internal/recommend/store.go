package recommend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStore はユーザーごとのおすすめセッションを保持する。
// 同一ユーザーへの操作はAcquireで得たHandleを通じて直列化される。
// 異なるユーザーがロックを共有することはない。
type SessionStore struct {
	mu    sync.Mutex
	slots map[string]*userSlot

	active   atomic.Int64
	onChange func(active int)
	now      func() time.Time
}

// userSlot は1ユーザー分のロックとセッション。
// refsは保持中および待機中のHandle数で、SessionStore.muの下で更新する。
type userSlot struct {
	lock    chan struct{}
	refs    int
	session *Session
	touched time.Time
}

// NewSessionStore はSessionStoreを生成する。
// onChangeはアクティブなセッション数が変化するたびに呼ばれる（nil可）。
func NewSessionStore(onChange func(active int)) *SessionStore {
	return &SessionStore{
		slots:    make(map[string]*userSlot),
		onChange: onChange,
		now:      time.Now,
	}
}

// Handle はAcquireで取得したユーザーのセッションへの排他アクセス。
// 使い終わったら必ずReleaseを呼ぶこと。
type Handle struct {
	store  *SessionStore
	slot   *userSlot
	userID string
	once   sync.Once
}

// Acquire はユーザーのロックを取得する。
// ctxがキャンセルされた場合は待機を中断してctx.Err()を返す。
func (s *SessionStore) Acquire(ctx context.Context, userID string) (*Handle, error) {
	s.mu.Lock()
	slot, ok := s.slots[userID]
	if !ok {
		slot = &userSlot{lock: make(chan struct{}, 1)}
		s.slots[userID] = slot
	}
	slot.refs++
	s.mu.Unlock()

	select {
	case slot.lock <- struct{}{}:
		return &Handle{store: s, slot: slot, userID: userID}, nil
	case <-ctx.Done():
		s.unref(userID, slot)
		return nil, ctx.Err()
	}
}

// Session は現在のセッションを返す。セッションがない場合はnil。
// 返り値はHandleを保持している間だけ変更してよい。
func (h *Handle) Session() *Session {
	return h.slot.session
}

// Set はセッションを置き換える。
func (h *Handle) Set(session *Session) {
	if h.slot.session == nil && session != nil {
		h.store.changeActive(1)
	}
	h.slot.session = session
}

// Clear はセッションを破棄する。
func (h *Handle) Clear() {
	if h.slot.session != nil {
		h.store.changeActive(-1)
	}
	h.slot.session = nil
}

// Release はロックを解放する。複数回呼んでも安全。
func (h *Handle) Release() {
	h.once.Do(func() {
		h.slot.touched = h.store.now()
		<-h.slot.lock
		h.store.unref(h.userID, h.slot)
	})
}

// unref は参照を外し、誰も参照せずセッションもないスロットを削除する。
func (s *SessionStore) unref(userID string, slot *userSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot.refs--
	if slot.refs == 0 && slot.session == nil {
		delete(s.slots, userID)
	}
}

// Sweep はidleより長く操作されていないセッションを破棄し、破棄したユーザーIDを返す。
// 保持中または待機中のHandleがあるスロットは対象外。
func (s *SessionStore) Sweep(idle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	var evicted []string
	for userID, slot := range s.slots {
		if slot.refs > 0 {
			continue
		}
		if slot.session != nil && slot.touched.After(cutoff) {
			continue
		}
		if slot.session != nil {
			evicted = append(evicted, userID)
			s.changeActive(-1)
		}
		delete(s.slots, userID)
	}
	return evicted
}

// StartSweeper はintervalごとにSweepを実行する。ctxのキャンセルで停止する。
// onSweepには破棄したユーザーIDが渡される（nil可）。
func (s *SessionStore) StartSweeper(ctx context.Context, interval, idle time.Duration, onSweep func(evicted []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := s.Sweep(idle)
			if onSweep != nil && len(evicted) > 0 {
				onSweep(evicted)
			}
		}
	}
}

// Active はアクティブなセッション数を返す。
func (s *SessionStore) Active() int {
	return int(s.active.Load())
}

func (s *SessionStore) changeActive(delta int64) {
	n := s.active.Add(delta)
	if s.onChange != nil {
		s.onChange(int(n))
	}
}
