package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// OrderbookCache implements domain.OrderbookCache using Redis sorted sets
// and hashes. The in-process book engine is authoritative; this cache only
// mirrors periodic snapshots for external consumers.
//
// Key schema:
//
//	book:{symbol}:bids     - sorted set of bid prices (score = price ticks)
//	book:{symbol}:asks     - sorted set of ask prices (score = price ticks)
//	book:{symbol}:bid:size - hash mapping price ticks -> size units for bids
//	book:{symbol}:ask:size - hash mapping price ticks -> size units for asks
//	book:{symbol}:bbo      - hash with fields "bid" and "ask" (best price ticks)
//	book:{symbol}:meta     - hash with "ts" field (snapshot timestamp)
type OrderbookCache struct {
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{rdb: c.Underlying()}
}

func bookBidsKey(symbol string) string    { return "book:" + symbol + ":bids" }
func bookAsksKey(symbol string) string    { return "book:" + symbol + ":asks" }
func bookBidSizeKey(symbol string) string { return "book:" + symbol + ":bid:size" }
func bookAskSizeKey(symbol string) string { return "book:" + symbol + ":ask:size" }
func bookBBOKey(symbol string) string     { return "book:" + symbol + ":bbo" }
func bookMetaKey(symbol string) string    { return "book:" + symbol + ":meta" }

// SetSnapshot atomically replaces the published orderbook for a symbol.
// It clears existing data and repopulates the sorted sets, size hashes,
// the BBO hash, and the metadata hash in one transaction.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, symbol string, snap domain.OrderbookSnapshot) error {
	bidsKey := bookBidsKey(symbol)
	asksKey := bookAsksKey(symbol)
	bidSizeKey := bookBidSizeKey(symbol)
	askSizeKey := bookAskSizeKey(symbol)
	bboKey := bookBBOKey(symbol)
	metaKey := bookMetaKey(symbol)

	pipe := oc.rdb.TxPipeline()

	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, bboKey, metaKey)

	for _, lvl := range snap.Bids {
		priceStr := strconv.FormatInt(lvl.PriceTicks, 10)
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: float64(lvl.PriceTicks), Member: priceStr})
		pipe.HSet(ctx, bidSizeKey, priceStr, strconv.FormatInt(lvl.SizeUnits, 10))
	}

	for _, lvl := range snap.Asks {
		priceStr := strconv.FormatInt(lvl.PriceTicks, 10)
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: float64(lvl.PriceTicks), Member: priceStr})
		pipe.HSet(ctx, askSizeKey, priceStr, strconv.FormatInt(lvl.SizeUnits, 10))
	}

	if snap.BestBid > 0 {
		pipe.HSet(ctx, bboKey, "bid", strconv.FormatInt(snap.BestBid, 10))
	}
	if snap.BestAsk > 0 {
		pipe.HSet(ctx, bboKey, "ask", strconv.FormatInt(snap.BestAsk, 10))
	}

	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set orderbook snapshot %s: %w", symbol, err)
	}
	return nil
}

// GetSnapshot reconstructs a full OrderbookSnapshot from Redis.
// It returns domain.ErrNotFound if no snapshot exists for the symbol.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, symbol string) (domain.OrderbookSnapshot, error) {
	pipe := oc.rdb.Pipeline()

	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookBidsKey(symbol), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, bookAsksKey(symbol), 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, bookBidSizeKey(symbol))
	askSizeCmd := pipe.HGetAll(ctx, bookAskSizeKey(symbol))
	bboCmd := pipe.HGetAll(ctx, bookBBOKey(symbol))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(symbol))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get orderbook snapshot %s: %w", symbol, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.OrderbookSnapshot{Symbol: symbol}

	if tsStr, ok := metaVals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err == nil {
			snap.Timestamp = time.Unix(0, tsNano)
		}
	}

	bidSizes, _ := bidSizeCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	snap.Bids = collectLevels(bidsZ, bidSizes)

	askSizes, _ := askSizeCmd.Result()
	asksZ, _ := asksCmd.Result()
	snap.Asks = collectLevels(asksZ, askSizes)

	bboVals, _ := bboCmd.Result()
	if bidStr, ok := bboVals["bid"]; ok {
		snap.BestBid, _ = strconv.ParseInt(bidStr, 10, 64)
	}
	if askStr, ok := bboVals["ask"]; ok {
		snap.BestAsk, _ = strconv.ParseInt(askStr, 10, 64)
	}

	return snap, nil
}

func collectLevels(zs []redis.Z, sizes map[string]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		price, err := strconv.ParseInt(priceStr, 10, 64)
		if err != nil {
			continue
		}
		var size int64
		if sizeStr, exists := sizes[priceStr]; exists {
			size, _ = strconv.ParseInt(sizeStr, 10, 64)
		}
		levels = append(levels, domain.PriceLevel{PriceTicks: price, SizeUnits: size})
	}
	return levels
}

// GetBBO retrieves the current best bid and best ask in display prices.
// It returns domain.ErrNotFound if no BBO data exists.
func (oc *OrderbookCache) GetBBO(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error) {
	vals, err := oc.rdb.HGetAll(ctx, bookBBOKey(symbol)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	if bidStr, ok := vals["bid"]; ok {
		ticks, _ := strconv.ParseInt(bidStr, 10, 64)
		bestBid = float64(ticks) / 1e6
	}
	if askStr, ok := vals["ask"]; ok {
		ticks, _ := strconv.ParseInt(askStr, 10, 64)
		bestAsk = float64(ticks) / 1e6
	}
	return bestBid, bestAsk, nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
