package batch

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/model"
	"github.com/grupomas/invoice-cli/internal/portal"
	"github.com/grupomas/invoice-cli/internal/reconcile"
)

const (
	accountA = "ES0021000000000001AB0F"
	accountB = "ES0021000000000002CD0F"
	accountC = "ES0021000000000003EF0F"
)

type stubSession struct {
	closed int
}

func (s *stubSession) Page() browser.Page { return nil }
func (s *stubSession) Close() error {
	s.closed++
	return nil
}

// stubStages scripts per-account outcomes keyed by account ID.
type stubStages struct {
	searchErr  map[string]error
	extractErr map[string]error
	rows       map[string]int

	searched []string
	enriched []string
}

func (s *stubStages) Apply(_ context.Context, _ browser.Page, accountID, _, _ string) error {
	s.searched = append(s.searched, accountID)
	return s.searchErr[accountID]
}

func (s *stubStages) Extract(_ context.Context, _ browser.Page, accountID string) ([]*model.InvoiceRecord, error) {
	if err := s.extractErr[accountID]; err != nil {
		return nil, err
	}
	var records []*model.InvoiceRecord
	for i := 1; i <= s.rows[accountID]; i++ {
		rec := model.NewInvoiceRecord(accountID, i)
		rec.InvoiceNumber = accountID[len(accountID)-4:] + "-" + string(rune('0'+i))
		records = append(records, rec)
	}
	return records, nil
}

func (s *stubStages) Enrich(_ context.Context, rec *model.InvoiceRecord) []reconcile.Discrepancy {
	s.enriched = append(s.enriched, rec.InvoiceNumber)
	return nil
}

// memExporter records WriteAccount calls.
type memExporter struct {
	runID    string
	accounts []string
	err      error
}

func (m *memExporter) WriteAccount(accountID string, _ []*model.InvoiceRecord) error {
	m.accounts = append(m.accounts, accountID)
	return m.err
}

func orchestratorFor(sess *stubSession, stages *stubStages, exp *memExporter) *Orchestrator {
	return NewOrchestrator(
		func(context.Context) (Session, error) { return sess, nil },
		stages, stages, stages,
		func(runID string) Exporter {
			exp.runID = runID
			return exp
		},
	)
}

func TestRun_IsolatesAccountFailures(t *testing.T) {
	sess := &stubSession{}
	stages := &stubStages{
		rows:      map[string]int{accountA: 3, accountC: 1},
		searchErr: map[string]error{accountB: eris.Wrap(portal.ErrSearch, "filter panel not ready")},
	}
	exp := &memExporter{}

	result, err := orchestratorFor(sess, stages, exp).Run(
		context.Background(), []string{accountA, accountB, accountC}, "01/01/2025", "31/10/2025")
	require.NoError(t, err)

	// 3 rows + 1 error sentinel + 1 row, in input order.
	require.Len(t, result.Records, 5)
	assert.Equal(t, accountA, result.Records[0].AccountID)
	assert.Equal(t, accountB, result.Records[3].AccountID)
	assert.True(t, result.Records[3].ErrorFlag)
	assert.Contains(t, result.Records[3].ErrorDetail, "filter panel")
	assert.Equal(t, accountC, result.Records[4].AccountID)

	assert.Equal(t, 2, result.AccountsOK)
	assert.Equal(t, 0, result.AccountsEmpty)
	assert.Equal(t, 1, result.AccountsErrored)

	// Session reused for every account and closed once.
	assert.Equal(t, []string{accountA, accountB, accountC}, stages.searched)
	assert.Equal(t, 1, sess.closed)

	// Only successful accounts were exported.
	assert.Equal(t, []string{accountA, accountC}, exp.accounts)
	assert.NotEmpty(t, exp.runID)
	assert.Equal(t, result.RunID, exp.runID)
}

func TestRun_EmptyAccountGetsSentinel(t *testing.T) {
	sess := &stubSession{}
	stages := &stubStages{rows: map[string]int{}}
	exp := &memExporter{}

	result, err := orchestratorFor(sess, stages, exp).Run(
		context.Background(), []string{accountA}, "01/01/2025", "31/10/2025")
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, model.NoInvoicesMarker, result.Records[0].BilledMonth)
	assert.False(t, result.Records[0].ErrorFlag)
	assert.Equal(t, 1, result.AccountsEmpty)
	assert.Empty(t, exp.accounts)
}

func TestRun_AuthFailureIsFatal(t *testing.T) {
	o := NewOrchestrator(
		func(context.Context) (Session, error) {
			return nil, eris.Wrap(portal.ErrAuth, "after 5 attempts")
		},
		&stubStages{}, &stubStages{}, &stubStages{},
		func(string) Exporter { return &memExporter{} },
	)

	_, err := o.Run(context.Background(), []string{accountA}, "01/01/2025", "31/10/2025")
	require.Error(t, err)
	assert.True(t, eris.Is(err, portal.ErrAuth))
}

func TestRun_ExportFailureIsNonFatal(t *testing.T) {
	sess := &stubSession{}
	stages := &stubStages{rows: map[string]int{accountA: 1}}
	exp := &memExporter{err: eris.New("disk full")}

	result, err := orchestratorFor(sess, stages, exp).Run(
		context.Background(), []string{accountA}, "01/01/2025", "31/10/2025")
	require.NoError(t, err)
	assert.Equal(t, 1, result.AccountsOK)
}

func TestRun_EnrichesEveryRecord(t *testing.T) {
	sess := &stubSession{}
	stages := &stubStages{rows: map[string]int{accountA: 2}}
	exp := &memExporter{}

	_, err := orchestratorFor(sess, stages, exp).Run(
		context.Background(), []string{accountA}, "01/01/2025", "31/10/2025")
	require.NoError(t, err)
	assert.Len(t, stages.enriched, 2)
}

func TestRun_CancelledContextStops(t *testing.T) {
	sess := &stubSession{}
	stages := &stubStages{rows: map[string]int{accountA: 1}}
	exp := &memExporter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orchestratorFor(sess, stages, exp).Run(ctx, []string{accountA}, "01/01/2025", "31/10/2025")
	require.Error(t, err)
	assert.Empty(t, stages.searched)
	assert.Equal(t, 1, sess.closed)
}
