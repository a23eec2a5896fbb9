package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/stats"
)

type countingRepo struct {
	pharmaCalls int
	storeCalls  int
	adminCalls  int
}

func (c *countingRepo) PharmaStats(ctx context.Context, pharmaID int64) (*stats.PharmaStats, error) {
	c.pharmaCalls++
	return &stats.PharmaStats{
		TotalProducts:        12,
		LowStockProducts:     3,
		CategoryDistribution: map[string]int64{"analgesic": 7, "antibiotic": 5},
		StockStatus:          stats.StockStatusCounts{InStock: 9, LowStock: 2, OutOfStock: 1},
	}, nil
}

func (c *countingRepo) StoreStats(ctx context.Context, storeID int64) (*stats.StoreStats, error) {
	c.storeCalls++
	return &stats.StoreStats{TotalOrders: 4, OrdersByStatus: map[string]int64{"pending": 1, "delivered": 3}}, nil
}

func (c *countingRepo) AdminStats(ctx context.Context) (*stats.AdminStats, error) {
	c.adminCalls++
	return &stats.AdminStats{TotalUsers: 20, ActiveUsers: 18, BlockedUsers: 2}, nil
}

func newService(t *testing.T) (*stats.Service, *countingRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &countingRepo{}
	return stats.NewService(repo, stats.NewCache(client, time.Minute)), repo
}

func TestPharmaStatsCached(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	first, err := svc.Pharma(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(12), first.TotalProducts)

	second, err := svc.Pharma(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.pharmaCalls, "second read must hit the cache")
}

func TestInvalidateBumpsVersion(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, repo.storeCalls)

	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.Store(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, repo.storeCalls, "bump must force a reload")
}

func TestAdminStatsPassThroughWithoutRedis(t *testing.T) {
	repo := &countingRepo{}
	svc := stats.NewService(repo, nil)

	out, err := svc.Admin(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(20), out.TotalUsers)

	_, err = svc.Admin(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.adminCalls, "nil cache always reloads")
}
