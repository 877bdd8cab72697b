// Package mongostore implements the Metadata Store collaborator of
// spec.md §3/§5 on go.mongodb.org/mongo-driver: messages, edit
// history, conversations, participants, the per-user overlay
// (read/visibility), reactions, pinned/marked messages, sync cursors,
// and the seq-segment counter document the Cache Store's allocator
// falls back to. The connection manager below is ported from the
// teacher's service/mgo/mgo.go: async connect with backoff, then a
// periodic ping that drops back to the connect loop on repeated
// failure.
package mongostore

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flare152/flare-im-core/internal/errs"
)

type Config struct {
	URI         string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize uint64
}

type manager struct {
	mu        sync.RWMutex
	db        *mongo.Database
	readyCh   chan struct{}
	readyOnce sync.Once
	lastErr   atomic.Value
}

var global manager

func buildOptions(cfg Config) (*options.ClientOptions, error) {
	if cfg.URI == "" {
		return nil, errs.New("mongostore: uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}
	return opts, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

// StartAsync runs until ctx is done. It closes Ready() on the first
// successful connection and transparently reconnects on later
// failures, so callers never block start-up on Mongo availability.
func StartAsync(ctx context.Context, cfg Config) {
	if global.readyCh == nil {
		global.readyCh = make(chan struct{})
	}
	opts, err := buildOptions(cfg)
	if err != nil {
		global.lastErr.Store(err)
		return
	}

	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := connect(ctx, opts)
				if err == nil {
					global.mu.Lock()
					global.db = cli.Database(cfg.Database)
					global.mu.Unlock()
					global.readyOnce.Do(func() { close(global.readyCh) })
					break
				}

				global.lastErr.Store(err)
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			fail := 0
			ticker := time.NewTicker(healthEvery)
			func() {
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						global.mu.Lock()
						if global.db != nil {
							_ = global.db.Client().Disconnect(context.Background())
							global.db = nil
						}
						global.mu.Unlock()
						return
					case <-ticker.C:
						global.mu.RLock()
						db := global.db
						global.mu.RUnlock()
						if db == nil {
							return
						}
						if err := db.Client().Ping(ctx, nil); err != nil {
							fail++
							global.lastErr.Store(err)
							if fail >= failThresh {
								global.mu.Lock()
								if global.db != nil {
									_ = global.db.Client().Disconnect(context.Background())
									global.db = nil
								}
								global.mu.Unlock()
								return
							}
						} else {
							fail = 0
						}
					}
				}
			}()
		}
	}()
}

func Ready() <-chan struct{} { return global.readyCh }

func Err() error {
	if v := global.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func GetDB() *mongo.Database {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.db == nil {
		panic("mongostore: not ready, wait on Ready()")
	}
	return global.db
}

func TryGetDB() (*mongo.Database, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if global.db == nil {
		return nil, false
	}
	return global.db, true
}

func WaitReady(ctx context.Context) error {
	global.mu.RLock()
	readyCh := global.readyCh
	notNil := global.db != nil
	global.mu.RUnlock()
	if notNil {
		return nil
	}
	if readyCh == nil {
		return fmt.Errorf("mongostore: manager not started")
	}
	select {
	case <-readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
