package changestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/tool"
	"github.com/fatflowers/renewal/pkg/types"
)

const (
	kindPlanChange = "plan_change"
	kindCancelLock = "cancel_lock"
	kindWalletLock = "wallet_lock"

	lockRetryInterval = 25 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store is the per-wallet ephemeral scheduling state. Values can be lost and
// rebuilt; every method is scoped to a single wallet key.
type Store interface {
	// GetPlanChange returns nil, nil when no request exists. A stored value that
	// cannot be decoded or is invalid yields an error wrapping ErrMalformed.
	GetPlanChange(ctx context.Context, wallet string) (*PlanChangeRequest, error)
	// GetPlanChanges batch-loads requests; missing and malformed entries are omitted.
	GetPlanChanges(ctx context.Context, wallets []string) (map[string]*PlanChangeRequest, error)
	GetCancelLock(ctx context.Context, wallet string) (*CancelLock, error)
	// PutPending writes a fresh request and its cancel lock atomically, replacing both.
	PutPending(ctx context.Context, req *PlanChangeRequest, lock *CancelLock) error
	PutPlanChange(ctx context.Context, req *PlanChangeRequest) error
	// RecordGiveUp stores the terminal request and removes the cancel lock atomically.
	RecordGiveUp(ctx context.Context, req *PlanChangeRequest) error
	// Clear removes the request and the cancel lock for wallet.
	Clear(ctx context.Context, wallet string) error
	// ScanPlanChanges walks stored requests; a returned cursor of 0 means the scan is complete.
	ScanPlanChanges(ctx context.Context, cursor uint64, count int64) ([]*PlanChangeRequest, uint64, error)
	// Lock serialises mutations for wallet until the returned release func is called.
	Lock(ctx context.Context, wallet string) (release func(), err error)
}

type RedisStore struct {
	client   goredis.UniversalClient
	prefix   string
	lockTTL  time.Duration
	lockWait time.Duration
	log      *zap.SugaredLogger
}

func NewRedisStore(client goredis.UniversalClient, cfg *config.Config, log *zap.SugaredLogger) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   cfg.Redis.KeyPrefix,
		lockTTL:  cfg.Redis.LockTTL,
		lockWait: cfg.Redis.LockWait,
		log:      log,
	}
}

// key hash-tags the wallet so all keys of one wallet share a cluster slot.
func (s *RedisStore) key(kind, wallet string) string {
	return fmt.Sprintf("%s%s:{%s}", s.prefix, kind, wallet)
}

func decodePlanChange(raw string) (*PlanChangeRequest, error) {
	var req PlanChangeRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *RedisStore) GetPlanChange(ctx context.Context, wallet string) (*PlanChangeRequest, error) {
	raw, err := s.client.Get(ctx, s.key(kindPlanChange, wallet)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan change: %w", err)
	}
	return decodePlanChange(raw)
}

// getRaw pipelines single-key GETs so the batch stays valid on a cluster.
// Missing keys come back as empty strings.
func (s *RedisStore) getRaw(ctx context.Context, keys []string) ([]string, error) {
	cmds := make([]*goredis.StringCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", keys[i], err)
		}
		out[i] = raw
	}
	return out, nil
}

func (s *RedisStore) GetPlanChanges(ctx context.Context, wallets []string) (map[string]*PlanChangeRequest, error) {
	out := make(map[string]*PlanChangeRequest, len(wallets))
	if len(wallets) == 0 {
		return out, nil
	}
	keys := make([]string, len(wallets))
	for i, w := range wallets {
		keys[i] = s.key(kindPlanChange, w)
	}
	raws, err := s.getRaw(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get plan changes: %w", err)
	}
	for i, raw := range raws {
		if raw == "" {
			continue
		}
		req, err := decodePlanChange(raw)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("plan_change_malformed", "wallet_address", wallets[i], "err", err)
			continue
		}
		out[wallets[i]] = req
	}
	return out, nil
}

func (s *RedisStore) GetCancelLock(ctx context.Context, wallet string) (*CancelLock, error) {
	raw, err := s.client.Get(ctx, s.key(kindCancelLock, wallet)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cancel lock: %w", err)
	}
	var lock CancelLock
	if err := json.Unmarshal([]byte(raw), &lock); err != nil {
		// An undecodable lock still blocks cancellation until explicitly cleared.
		logctx.FromCtx(ctx, s.log).Warnw("cancel_lock_malformed", "wallet_address", wallet, "err", err)
		return &CancelLock{WalletAddress: wallet, Reason: types.CancelLockReasonUpgradePending}, nil
	}
	return &lock, nil
}

func (s *RedisStore) PutPending(ctx context.Context, req *PlanChangeRequest, lock *CancelLock) error {
	reqRaw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode plan change: %w", err)
	}
	lockRaw, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("encode cancel lock: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(kindPlanChange, req.WalletAddress), reqRaw, 0)
		pipe.Set(ctx, s.key(kindCancelLock, req.WalletAddress), lockRaw, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put pending plan change: %w", err)
	}
	return nil
}

func (s *RedisStore) PutPlanChange(ctx context.Context, req *PlanChangeRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode plan change: %w", err)
	}
	if err := s.client.Set(ctx, s.key(kindPlanChange, req.WalletAddress), raw, 0).Err(); err != nil {
		return fmt.Errorf("put plan change: %w", err)
	}
	return nil
}

func (s *RedisStore) RecordGiveUp(ctx context.Context, req *PlanChangeRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode plan change: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(kindPlanChange, req.WalletAddress), raw, 0)
		pipe.Del(ctx, s.key(kindCancelLock, req.WalletAddress))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record give up: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, wallet string) error {
	if err := s.client.Del(ctx, s.key(kindPlanChange, wallet), s.key(kindCancelLock, wallet)).Err(); err != nil {
		return fmt.Errorf("clear plan change state: %w", err)
	}
	return nil
}

func (s *RedisStore) ScanPlanChanges(ctx context.Context, cursor uint64, count int64) ([]*PlanChangeRequest, uint64, error) {
	keys, next, err := s.client.Scan(ctx, cursor, s.prefix+kindPlanChange+":*", count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("scan plan changes: %w", err)
	}
	if len(keys) == 0 {
		return nil, next, nil
	}
	raws, err := s.getRaw(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("load scanned plan changes: %w", err)
	}
	out := make([]*PlanChangeRequest, 0, len(raws))
	for i, raw := range raws {
		if raw == "" {
			continue
		}
		req, err := decodePlanChange(raw)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("plan_change_malformed", "key", keys[i], "err", err)
			continue
		}
		out = append(out, req)
	}
	return out, next, nil
}

func (s *RedisStore) Lock(ctx context.Context, wallet string) (func(), error) {
	key := s.key(kindWalletLock, wallet)
	token := tool.NewToken()
	deadline := time.Now().Add(s.lockWait)
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire wallet lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", types.ErrWalletBusy, wallet)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, s.client, []string{key}, token).Err(); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("wallet_lock_release_failed", "wallet_address", wallet, "err", err)
		}
	}
	return release, nil
}

// WithWalletLock runs fn while holding the wallet's mutation lock.
func WithWalletLock(ctx context.Context, s Store, wallet string, fn func(ctx context.Context) error) error {
	release, err := s.Lock(ctx, wallet)
	if err != nil {
		return err
	}
	defer release()
	return fn(logctx.WithWallet(ctx, wallet))
}
