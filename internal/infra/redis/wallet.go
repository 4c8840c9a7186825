package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tournament-quiz-service/internal/domain"
)

// debitScript checks and decrements atomically so two concurrent starts
// cannot both spend the same balance.
var debitScript = redis.NewScript(`
local bal = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local amt = tonumber(ARGV[2])
if bal < amt then
  return 0
end
redis.call('HINCRBYFLOAT', KEYS[1], ARGV[1], '-' .. ARGV[2])
return 1
`)

const walletKey = "quiz:wallets"

// Wallet stores balances in a redis hash, implementing app.Wallet.
type Wallet struct {
	client *redis.Client
}

func NewWallet(client *redis.Client) *Wallet {
	return &Wallet{client: client}
}

func (w *Wallet) Debit(ctx context.Context, userID string, amount float64) error {
	ok, err := debitScript.Run(ctx, w.client, []string{walletKey}, userID, fmt.Sprintf("%f", amount)).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (w *Wallet) Credit(ctx context.Context, userID string, amount float64) error {
	return w.client.HIncrByFloat(ctx, walletKey, userID, amount).Err()
}

func (w *Wallet) Balance(ctx context.Context, userID string) (float64, error) {
	bal, err := w.client.HGet(ctx, walletKey, userID).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return bal, err
}
