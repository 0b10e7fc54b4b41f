package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wearly/wearly/internal/metrics"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/season"
)

// Outcome はおすすめリクエストの結果種別。
type Outcome string

const (
	OutcomeRecommended      Outcome = "recommended"
	OutcomeNoEligible       Outcome = "no_eligible"
	OutcomeResolutionFailed Outcome = "resolution_failed"
)

// FeedbackOutcome はフィードバック後のセッション状態。
type FeedbackOutcome string

const (
	FeedbackOutcomeNext         FeedbackOutcome = "next"
	FeedbackOutcomeSessionEmpty FeedbackOutcome = "session_empty"
)

// Result はおすすめリクエストの結果。
type Result struct {
	Outcome   Outcome
	Season    model.Season
	Head      *model.Garment  // Outcome=recommended のときのみ設定される
	Remaining []model.Garment // 未提示の候補（ランキング順）
	Reason    string          // Outcome=resolution_failed のときの理由
}

// FeedbackResult はフィードバック送信の結果。
type FeedbackResult struct {
	Outcome FeedbackOutcome
	Head    *model.Garment // 次に提示する衣服。セッションが空の場合はnil
	Updated *model.Garment // スコア更新後の対象衣服
}

// GarmentLister はユーザーの衣服を登録順に返す。
type GarmentLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.Garment, error)
}

// FeedbackApplier はフィードバックをスコアと嗜好集計に反映する。
type FeedbackApplier interface {
	Apply(ctx context.Context, userID, garmentID string, sign model.FeedbackSign) (*model.Garment, error)
}

// WeatherProvider は座標から現在の天気を取得する。
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (*model.WeatherReading, error)
}

// Notifier は提示中の衣服の変化を通知する。headがnilの場合はセッション終了を表す。
// 呼び出しはブロックしてはならない。
type Notifier interface {
	NotifyHead(userID string, head *model.Garment)
}

// Service はおすすめの算出・フィードバック・セッション管理を提供する。
type Service struct {
	garments GarmentLister
	filter   *EligibilityFilter
	updater  FeedbackApplier
	weather  WeatherProvider
	sessions *SessionStore
	notifier Notifier
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。weatherとnotifierはnil可。
func NewService(
	garments GarmentLister,
	filter *EligibilityFilter,
	updater FeedbackApplier,
	weather WeatherProvider,
	sessions *SessionStore,
	notifier Notifier,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		garments: garments,
		filter:   filter,
		updater:  updater,
		weather:  weather,
		sessions: sessions,
		notifier: notifier,
		metrics:  mc,
		logger:   logger,
		now:      time.Now,
	}
}

// resolutionError は天気取得またはカテゴリ判定の失敗を表す内部エラー。
type resolutionError struct {
	err error
}

func (e *resolutionError) Error() string { return e.err.Error() }
func (e *resolutionError) Unwrap() error { return e.err }

// Recommend は指定された天気と状況でおすすめを算出し、ユーザーのセッションを置き換える。
// 着用可能な衣服が0件、または判定に失敗した場合は既存のセッションを破棄する。
func (s *Service) Recommend(ctx context.Context, userID, situation string, reading *model.WeatherReading) (*Result, error) {
	situation, err := validateSituation(situation)
	if err != nil {
		return nil, err
	}
	ssn, err := season.ClassifyReading(reading)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, situation, func(context.Context) (model.Season, error) {
		return ssn, nil
	})
}

// RecommendAt は座標から天気を取得したうえでおすすめを算出する。
// 天気が取得できない場合はresolution_failedとして扱う。
func (s *Service) RecommendAt(ctx context.Context, userID, situation string, lat, lon float64) (*Result, error) {
	situation, err := validateSituation(situation)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, model.NewValidationError("緯度は-90から90の範囲で指定してください")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, model.NewValidationError("経度は-180から180の範囲で指定してください")
	}
	if s.weather == nil {
		return nil, model.NewResolutionFailedError("天気情報の取得先が設定されていません")
	}

	return s.run(ctx, userID, situation, func(ctx context.Context) (model.Season, error) {
		reading, err := s.weather.Current(ctx, lat, lon)
		if err != nil {
			return "", err
		}
		return season.ClassifyReading(reading)
	})
}

func validateSituation(situation string) (string, error) {
	situation = strings.TrimSpace(situation)
	if situation == "" {
		return "", model.NewValidationError("状況を指定してください")
	}
	return situation, nil
}

// run は衣服の読み込みと季節・カテゴリの判定を並行に行い、ランキング後にセッションを確定する。
// ユーザーのロックを保持したまま実行するため、同じユーザーのフィードバックとは直列化される。
func (s *Service) run(ctx context.Context, userID, situation string, seasonFn func(context.Context) (model.Season, error)) (*Result, error) {
	h, err := s.sessions.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションのロック取得に失敗: %w", err)
	}
	defer h.Release()

	var (
		garments []model.Garment
		ssn      model.Season
		eligible CategorySet
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.garments.ListByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("衣服一覧の取得に失敗: %w", err)
		}
		garments = list
		return nil
	})
	g.Go(func() error {
		got, err := seasonFn(gctx)
		if err != nil {
			return &resolutionError{err: err}
		}
		ssn = got
		set, err := s.filter.Eligible(gctx, situation, got)
		if err != nil {
			return &resolutionError{err: err}
		}
		eligible = set
		return nil
	})

	if err := g.Wait(); err != nil {
		var resErr *resolutionError
		if !errors.As(err, &resErr) {
			s.logger.Error("failed to load garments for recommendation",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewPersistenceFailedError()
		}

		s.logger.Warn("recommendation resolution failed",
			slog.String("user_id", userID),
			slog.String("situation", situation),
			slog.String("error", resErr.Error()),
		)
		s.clear(h, userID)
		s.metrics.RecordRecommendation(string(OutcomeResolutionFailed))
		return &Result{Outcome: OutcomeResolutionFailed, Season: ssn, Reason: resErr.Error()}, nil
	}

	ranked := Rank(garments, eligible)
	if len(ranked) == 0 {
		s.clear(h, userID)
		s.metrics.RecordRecommendation(string(OutcomeNoEligible))
		return &Result{Outcome: OutcomeNoEligible, Season: ssn}, nil
	}

	session := newSession(situation, ssn, ranked, s.now())
	h.Set(session)
	s.metrics.RecordRecommendation(string(OutcomeRecommended))
	s.notify(userID, &session.Head)

	s.logger.Info("recommendation session started",
		slog.String("user_id", userID),
		slog.String("season", string(ssn)),
		slog.Int("candidates", len(ranked)),
	)

	snap := session.snapshot()
	return &Result{
		Outcome:   OutcomeRecommended,
		Season:    ssn,
		Head:      &snap.Head,
		Remaining: snap.Remaining,
	}, nil
}

// SubmitFeedback はフィードバックを永続化し、セッションを次の候補へ進める。
// 衣服が存在しない場合はセッションを変更せずにGarmentNotFoundErrorを返す。
// セッションに含まれない衣服（重複送信など）へのフィードバックはスコアのみ更新し、
// 現在の提示中の衣服を返す。
func (s *Service) SubmitFeedback(ctx context.Context, userID, garmentID string, sign model.FeedbackSign) (*FeedbackResult, error) {
	garmentID = strings.TrimSpace(garmentID)
	if garmentID == "" {
		return nil, model.NewValidationError("衣服IDを指定してください")
	}
	if !sign.Valid() {
		return nil, model.NewValidationError("フィードバックはlikeまたはdislikeで指定してください")
	}

	h, err := s.sessions.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションのロック取得に失敗: %w", err)
	}
	defer h.Release()

	updated, err := s.updater.Apply(ctx, userID, garmentID, sign)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordFeedback(sign.String())

	session := h.Session()
	if session == nil {
		return &FeedbackResult{Outcome: FeedbackOutcomeSessionEmpty, Updated: updated}, nil
	}

	// 候補の並び順はランキング時のまま、スコアだけ最新にする
	if updated != nil {
		session.refresh(*updated)
	}

	if !session.contains(garmentID) {
		head := session.Head
		return &FeedbackResult{Outcome: FeedbackOutcomeNext, Head: &head, Updated: updated}, nil
	}

	if sign == model.FeedbackDislike {
		session.excise(garmentID)
	}
	if !session.advance() {
		s.clear(h, userID)
		return &FeedbackResult{Outcome: FeedbackOutcomeSessionEmpty, Updated: updated}, nil
	}

	head := session.Head
	s.notify(userID, &head)
	return &FeedbackResult{Outcome: FeedbackOutcomeNext, Head: &head, Updated: updated}, nil
}

// Current は提示中の衣服を返す。セッションがない場合はnil。
func (s *Service) Current(ctx context.Context, userID string) (*model.Garment, error) {
	h, err := s.sessions.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("セッションのロック取得に失敗: %w", err)
	}
	defer h.Release()

	session := h.Session()
	if session == nil {
		return nil, nil
	}
	head := session.Head
	return &head, nil
}

// Forget は削除された衣服をセッションから取り除く。
// 提示中の衣服だった場合は次の候補へ進める。
func (s *Service) Forget(ctx context.Context, userID, garmentID string) error {
	h, err := s.sessions.Acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("セッションのロック取得に失敗: %w", err)
	}
	defer h.Release()

	session := h.Session()
	if session == nil || !session.contains(garmentID) {
		return nil
	}

	session.excise(garmentID)
	if session.Head.ID != garmentID {
		return nil
	}
	if !session.advance() {
		s.clear(h, userID)
		return nil
	}
	head := session.Head
	s.notify(userID, &head)
	return nil
}

// Drop はユーザーのセッションを破棄する。退会時に使用する。
func (s *Service) Drop(ctx context.Context, userID string) error {
	h, err := s.sessions.Acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("セッションのロック取得に失敗: %w", err)
	}
	defer h.Release()

	if h.Session() != nil {
		h.Clear()
	}
	return nil
}

// StartSweeper はidleより長く操作されていないセッションをintervalごとに破棄し、
// 破棄したユーザーの端末にセッション終了を通知する。ctxのキャンセルで停止する。
func (s *Service) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	s.sessions.StartSweeper(ctx, interval, idle, s.evicted)
}

func (s *Service) evicted(userIDs []string) {
	for _, userID := range userIDs {
		s.notify(userID, nil)
	}
	s.logger.Info("idle recommendation sessions evicted",
		slog.Int("evicted", len(userIDs)),
	)
}

// clear はセッションを破棄し、存在していた場合は終了を通知する。
func (s *Service) clear(h *Handle, userID string) {
	if h.Session() == nil {
		return
	}
	h.Clear()
	s.notify(userID, nil)
}

func (s *Service) notify(userID string, head *model.Garment) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyHead(userID, head)
}
