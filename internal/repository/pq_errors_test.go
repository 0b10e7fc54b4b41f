package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"シリアライゼーション失敗", &pq.Error{Code: "40001"}, true},
		{"デッドロック検出", &pq.Error{Code: "40P01"}, true},
		{"ラップされたデッドロック", fmt.Errorf("failed to apply score delta: %w", &pq.Error{Code: "40P01"}), true},
		{"一意制約違反は再試行しない", &pq.Error{Code: "23505"}, false},
		{"pq以外のエラー", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("failed to insert user: %w", &pq.Error{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Error("23505 は一意制約違反と判定されるべき")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("外部キー違反は一意制約違反ではない")
	}
}

func TestIsInvalidInput(t *testing.T) {
	if !IsInvalidInput(&pq.Error{Code: "22P02"}) {
		t.Error("22P02 は入力形式エラーと判定されるべき")
	}
	if IsInvalidInput(errors.New("other")) {
		t.Error("pq以外のエラーは入力形式エラーではない")
	}
}
