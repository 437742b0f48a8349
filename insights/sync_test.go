package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/store"
)

// ============================================================================
// HISTORICAL SYNC
// ============================================================================

// stubFetcher serves canned rows per account and fails for accounts listed
// in failFor.
type stubFetcher struct {
	platform pipeline.Platform
	rows     map[string]map[string][]pipeline.Doc // account id → collection → docs
	failFor  map[string]bool
	calls    int
}

func (f *stubFetcher) Platform() pipeline.Platform { return f.platform }

func (f *stubFetcher) FetchWindow(ctx context.Context, acct Account, startDate, endDate string) (map[string][]pipeline.Doc, error) {
	f.calls++
	if f.failFor[acct.AccountID] {
		return nil, errors.New("token expired")
	}
	return f.rows[acct.AccountID], nil
}

func metaWindowRows(userID, accountID string) map[string][]pipeline.Doc {
	return map[string][]pipeline.Doc{
		pipeline.MetaCampaignCollection: {
			{
				"user_id":       userID,
				"ad_account_id": accountID,
				"campaign_id":   "c1",
				"date_start":    "2024-01-10",
				"clicks":        "5",
				"impressions":   "50",
				"spend":         "2.00",
			},
			{
				"user_id":       userID,
				"ad_account_id": accountID,
				"campaign_id":   "c1",
				"date_start":    "2024-01-11",
				"clicks":        "3",
				"impressions":   "30",
				"spend":         "1.00",
			},
		},
	}
}

func TestSyncWindowStoresFetchedRows(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{
		platform: pipeline.Meta,
		rows:     map[string]map[string][]pipeline.Doc{"act_1": metaWindowRows("u1", "act_1")},
	}
	syncer := NewSyncer(st, []Fetcher{fetcher}, zap.NewNop())

	err := syncer.SyncWindow(context.Background(), pipeline.Meta,
		Account{UserID: "u1", AccountID: "act_1"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count(pipeline.MetaCampaignCollection))
}

func TestSyncWindowIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{
		platform: pipeline.Meta,
		rows:     map[string]map[string][]pipeline.Doc{"act_1": metaWindowRows("u1", "act_1")},
	}
	syncer := NewSyncer(st, []Fetcher{fetcher}, zap.NewNop())
	acct := Account{UserID: "u1", AccountID: "act_1"}

	for i := 0; i < 3; i++ {
		require.NoError(t, syncer.SyncWindow(context.Background(), pipeline.Meta, acct, "2024-01-01", "2024-01-31"))
	}
	assert.Equal(t, 2, st.Count(pipeline.MetaCampaignCollection))
}

func TestSyncWindowDoesNotTouchOtherUsers(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	// Pre-existing rows for another user in the same window.
	require.NoError(t, st.InsertMany(ctx, pipeline.MetaCampaignCollection,
		metaWindowRows("u2", "act_2")[pipeline.MetaCampaignCollection]))

	fetcher := &stubFetcher{
		platform: pipeline.Meta,
		rows:     map[string]map[string][]pipeline.Doc{"act_1": metaWindowRows("u1", "act_1")},
	}
	syncer := NewSyncer(st, []Fetcher{fetcher}, zap.NewNop())

	require.NoError(t, syncer.SyncWindow(ctx, pipeline.Meta,
		Account{UserID: "u1", AccountID: "act_1"}, "2024-01-01", "2024-01-31"))
	assert.Equal(t, 4, st.Count(pipeline.MetaCampaignCollection))
}

func TestSyncWindowUnknownPlatform(t *testing.T) {
	syncer := NewSyncer(store.NewMemory(), nil, zap.NewNop())
	err := syncer.SyncWindow(context.Background(), pipeline.Meta,
		Account{UserID: "u1", AccountID: "act_1"}, "2024-01-01", "2024-01-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher registered")
}

func TestSyncAllIsolatesAccountFailures(t *testing.T) {
	st := store.NewMemory()
	fetcher := &stubFetcher{
		platform: pipeline.Meta,
		rows: map[string]map[string][]pipeline.Doc{
			"act_1": metaWindowRows("u1", "act_1"),
			"act_3": metaWindowRows("u3", "act_3"),
		},
		failFor: map[string]bool{"act_2": true},
	}
	syncer := NewSyncer(st, []Fetcher{fetcher}, zap.NewNop())

	syncer.SyncAll(context.Background(), pipeline.Meta, []Account{
		{UserID: "u1", AccountID: "act_1"},
		{UserID: "u2", AccountID: "act_2"},
		{UserID: "u3", AccountID: "act_3"},
	}, "2024-01-01", "2024-01-31")

	assert.Equal(t, 3, fetcher.calls) // the failure did not stop the batch
	assert.Equal(t, 4, st.Count(pipeline.MetaCampaignCollection))
}

func TestReplaceWindowWithCallerRows(t *testing.T) {
	st := store.NewMemory()
	syncer := NewSyncer(st, nil, zap.NewNop())
	acct := Account{UserID: "u1", AccountID: "act_1"}

	rows := metaWindowRows("u1", "act_1")
	require.NoError(t, syncer.ReplaceWindow(context.Background(), pipeline.Meta, acct,
		"2024-01-01", "2024-01-31", rows))

	// A smaller re-delivery of the same window replaces, not appends.
	smaller := map[string][]pipeline.Doc{
		pipeline.MetaCampaignCollection: rows[pipeline.MetaCampaignCollection][:1],
	}
	require.NoError(t, syncer.ReplaceWindow(context.Background(), pipeline.Meta, acct,
		"2024-01-01", "2024-01-31", smaller))
	assert.Equal(t, 1, st.Count(pipeline.MetaCampaignCollection))
}
