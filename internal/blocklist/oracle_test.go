package blocklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"solflow/internal/models"
)

type fakeReader struct {
	entries []models.BlocklistEntry
	err     error
}

func (f *fakeReader) ListBlocklist(ctx context.Context) ([]models.BlocklistEntry, error) {
	return f.entries, f.err
}

func TestOracle_IsBlockedAfterRefresh(t *testing.T) {
	reader := &fakeReader{entries: []models.BlocklistEntry{
		{Mint: "MintBad", Reason: "rug", BlockedBy: "ops", CreatedAt: time.Now()},
	}}
	o := New(reader)
	o.Refresh(context.Background())

	if !o.IsBlocked("MintBad", time.Now()) {
		t.Error("expected MintBad to be blocked")
	}
	if o.IsBlocked("MintGood", time.Now()) {
		t.Error("expected MintGood to be unblocked")
	}
}

func TestOracle_ExpiredEntryIsNotBlocked(t *testing.T) {
	expires := time.Now().Add(-time.Hour)
	reader := &fakeReader{entries: []models.BlocklistEntry{
		{Mint: "MintExpired", ExpiresAt: &expires},
	}}
	o := New(reader)
	o.Refresh(context.Background())

	if o.IsBlocked("MintExpired", time.Now()) {
		t.Error("expected expired entry to no longer block")
	}
}

func TestOracle_FailsOpenOnRefreshError(t *testing.T) {
	reader := &fakeReader{entries: []models.BlocklistEntry{{Mint: "MintBad"}}}
	o := New(reader)
	o.Refresh(context.Background())

	reader.err = errors.New("store unavailable")
	reader.entries = nil
	o.Refresh(context.Background()) // should keep the previous cache, not clear it

	if !o.IsBlocked("MintBad", time.Now()) {
		t.Error("expected stale cache to still report MintBad as blocked on refresh failure")
	}
}
