package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Publisher is the part of *redis.Client the observer uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisObserver publishes wallet snapshots on a Redis channel so surfaces in
// other processes can show the new balance.
type RedisObserver struct {
	pub     Publisher
	channel string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisObserver(pub Publisher, channel string, log *slog.Logger) *RedisObserver {
	if log == nil {
		log = slog.Default()
	}
	return &RedisObserver{pub: pub, channel: channel, timeout: 500 * time.Millisecond, log: log}
}

type snapshotMessage struct {
	Balance            int64               `json:"balance"`
	RecentTransactions []transactionRecord `json:"recentTransactions"`
	FetchedAt          time.Time           `json:"fetchedAt"`
}

type transactionRecord struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Kind          string    `json:"kind"`
	ReferenceCode string    `json:"referenceCode,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (o *RedisObserver) OnWalletSnapshot(s WalletSnapshot) {
	msg := snapshotMessage{
		Balance:            s.Balance,
		RecentTransactions: make([]transactionRecord, 0, len(s.RecentTransactions)),
		FetchedAt:          s.FetchedAt,
	}
	for _, t := range s.RecentTransactions {
		msg.RecentTransactions = append(msg.RecentTransactions, transactionRecord(t))
	}

	body, err := json.Marshal(msg)
	if err != nil {
		o.log.Error("encode wallet snapshot", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.pub.Publish(ctx, o.channel, body).Err(); err != nil {
		o.log.Warn("publish wallet snapshot", "channel", o.channel, "error", err)
	}
}
