// Package prune は古いトークンの一括削除ジョブを提供する。
// 保持期間（デフォルト24h）を超えて期限切れのままのトークンと、
// 期限未設定のまま保持期間より古いトークンを削除する。
// さらに独立した二次掃除として、期限の有無にかかわらず
// 絶対年齢上限（90日）を超えたトークンを削除する。
// リクエスト経路とは無関係にスケジュール実行される保守ジョブ。
package prune

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// absoluteAgeCeilingDays は期限の有無にかかわらず適用する絶対年齢上限（日）。
const absoluteAgeCeilingDays = 90

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PruneJob は古いトークンの一括削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type PruneJob struct {
	db        Executor
	logger    *slog.Logger
	Retention time.Duration // 期限切れトークンの保持期間（デフォルト: 24h）
}

// NewPruneJob は新しいPruneJobを生成する。
// デフォルトの保持期間は24時間。
func NewPruneJob(db Executor, logger *slog.Logger) *PruneJob {
	return &PruneJob{
		db:        db,
		logger:    logger,
		Retention: 24 * time.Hour,
	}
}

// Run はプルーニングを実行し、削除した合計件数を返す。
// 1回目のDELETE: 期限切れから保持期間が経過したトークン、
// および期限未設定で作成から保持期間が経過したトークン。
// 2回目のDELETE: 絶対年齢上限を超えた全トークン（独立した掃除）。
func (j *PruneJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	interval := fmt.Sprintf("%d hours", int(j.Retention.Hours()))

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM tokens
		 WHERE expires_at < now() - $1::interval
		    OR (expires_at IS NULL AND created_at < now() - $1::interval)`,
		interval,
	)
	if err != nil {
		j.logger.Error("token prune job failed",
			slog.String("error", err.Error()),
			slog.String("retention", interval),
		)
		return 0, fmt.Errorf("failed to prune expired tokens: %w", err)
	}

	expiredCount, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned tokens: %w", err)
	}

	ceiling := fmt.Sprintf("%d days", absoluteAgeCeilingDays)
	result, err = j.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE created_at < now() - $1::interval`,
		ceiling,
	)
	if err != nil {
		j.logger.Error("token age ceiling sweep failed",
			slog.String("error", err.Error()),
			slog.String("ceiling", ceiling),
		)
		return expiredCount, fmt.Errorf("failed to sweep very old tokens: %w", err)
	}

	veryOldCount, err := result.RowsAffected()
	if err != nil {
		return expiredCount, fmt.Errorf("failed to count swept tokens: %w", err)
	}

	total := expiredCount + veryOldCount
	duration := time.Since(start)
	j.logger.Info("token prune job completed",
		slog.Int64("deleted_count", total),
		slog.Int64("expired_count", expiredCount),
		slog.Int64("very_old_count", veryOldCount),
		slog.String("retention", interval),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return total, nil
}
