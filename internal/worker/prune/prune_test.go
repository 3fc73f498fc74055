package prune

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// execCall は1回分のExecContext呼び出しを記録する。
type execCall struct {
	query string
	args  []interface{}
}

// Executor インターフェースに対するモック実装。
// プルーニングは2回のDELETEを発行するため、呼び出しごとに結果を切り替えられる。
type mockExecutor struct {
	calls   []execCall
	results []sql.Result
	errs    []error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	i := len(m.calls)
	m.calls = append(m.calls, execCall{query: query, args: args})

	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var result sql.Result = &fakeResult{}
	if i < len(m.results) {
		result = m.results[i]
	}
	return result, err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewPruneJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewPruneJob(&mockExecutor{}, newTestLogger(&buf))

	if job == nil {
		t.Fatal("NewPruneJob は nil を返してはならない")
	}
}

func TestNewPruneJob_DefaultRetention(t *testing.T) {
	var buf bytes.Buffer
	job := NewPruneJob(&mockExecutor{}, newTestLogger(&buf))

	if job.Retention != 24*time.Hour {
		t.Errorf("Retention = %v, want %v", job.Retention, 24*time.Hour)
	}
}

func TestRun_ExecutesTwoDeletes(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 3}, &fakeResult{rowsAffected: 1}},
	}
	job := NewPruneJob(mock, newTestLogger(&buf))

	total, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if total != 4 {
		t.Errorf("削除合計 = %d, want 4", total)
	}

	if len(mock.calls) != 2 {
		t.Fatalf("ExecContext の呼び出し回数 = %d, want 2", len(mock.calls))
	}

	// 1回目: 期限切れ+期限未設定の保持期間超過
	first := mock.calls[0]
	if !strings.Contains(first.query, "DELETE FROM tokens") {
		t.Errorf("1回目のクエリに 'DELETE FROM tokens' が含まれていない: %s", first.query)
	}
	if !strings.Contains(first.query, "expires_at") {
		t.Errorf("1回目のクエリに 'expires_at' 条件が含まれていない: %s", first.query)
	}
	if !strings.Contains(first.query, "expires_at IS NULL") {
		t.Errorf("1回目のクエリに期限未設定の条件が含まれていない: %s", first.query)
	}

	// 2回目: 絶対年齢上限の掃除
	second := mock.calls[1]
	if !strings.Contains(second.query, "DELETE FROM tokens") {
		t.Errorf("2回目のクエリに 'DELETE FROM tokens' が含まれていない: %s", second.query)
	}
	if !strings.Contains(second.query, "created_at") {
		t.Errorf("2回目のクエリに 'created_at' 条件が含まれていない: %s", second.query)
	}
}

func TestRun_UsesRetentionInterval(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewPruneJob(mock, newTestLogger(&buf))

	_, _ = job.Run(context.Background())

	if len(mock.calls) < 1 || len(mock.calls[0].args) < 1 {
		t.Fatal("1回目のExecContext に引数が渡されなかった")
	}
	argStr, ok := mock.calls[0].args[0].(string)
	if !ok {
		t.Fatalf("第1引数が string ではない: %T", mock.calls[0].args[0])
	}
	if argStr != "24 hours" {
		t.Errorf("interval引数 = %q, want %q", argStr, "24 hours")
	}
}

func TestRun_CustomRetention(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewPruneJob(mock, newTestLogger(&buf))
	job.Retention = 48 * time.Hour

	_, _ = job.Run(context.Background())

	argStr, _ := mock.calls[0].args[0].(string)
	if argStr != "48 hours" {
		t.Errorf("interval引数 = %q, want %q", argStr, "48 hours")
	}
}

func TestRun_AgeCeilingIsNinetyDays(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewPruneJob(mock, newTestLogger(&buf))

	_, _ = job.Run(context.Background())

	if len(mock.calls) < 2 || len(mock.calls[1].args) < 1 {
		t.Fatal("2回目のExecContext に引数が渡されなかった")
	}
	argStr, _ := mock.calls[1].args[0].(string)
	if argStr != "90 days" {
		t.Errorf("年齢上限引数 = %q, want %q", argStr, "90 days")
	}
}

func TestRun_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 40}, &fakeResult{rowsAffected: 2}},
	}
	job := NewPruneJob(mock, newTestLogger(&buf))

	_, _ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok && count == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestRun_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		errs: []error{sql.ErrConnDone},
	}
	job := NewPruneJob(mock, newTestLogger(&buf))

	_, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

// 2回目のDELETEが失敗しても1回目の削除件数は返す
func TestRun_SecondDeleteFailure_ReturnsPartialCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 7}, nil},
		errs:    []error{nil, sql.ErrConnDone},
	}
	job := NewPruneJob(mock, newTestLogger(&buf))

	total, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("2回目のDELETE失敗時はエラーを返すべき")
	}
	if total != 7 {
		t.Errorf("部分的な削除件数 = %d, want 7", total)
	}
}

func TestRun_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewPruneJob(mock, newTestLogger(&buf))

	// 削除対象がなくてもエラーにならない
	for i := 0; i < 2; i++ {
		total, err := job.Run(context.Background())
		if err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
		if total != 0 {
			t.Errorf("削除件数 = %d, want 0", total)
		}
	}
}
