package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqInvalidTextRepresent = "22P02"
)

// IsUniqueViolation はerrが一意制約違反かどうかを返す。
func IsUniqueViolation(err error) bool {
	return hasPQCode(err, pqUniqueViolation)
}

// IsRetryable はerrが再試行で解消しうるトランザクションエラー
// （シリアライゼーション失敗・デッドロック）かどうかを返す。
func IsRetryable(err error) bool {
	return hasPQCode(err, pqSerializationFailure) || hasPQCode(err, pqDeadlockDetected)
}

// IsInvalidInput はerrが型変換エラー（不正なUUID文字列など）かどうかを返す。
func IsInvalidInput(err error) bool {
	return hasPQCode(err, pqInvalidTextRepresent)
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
