package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisAddr is the address used when RedisConfig.Addr is empty.
const DefaultRedisAddr = "localhost:6379"

// redisBlockSlice bounds a single BLPOP/BRPOP call.
const redisBlockSlice = time.Second

// redisMinBlock is the shortest wait sent to the server; a zero timeout there
// means forever.
const redisMinBlock = time.Millisecond

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	// Addr is the host:port of the server.
	Addr string
	// Username and Password authenticate with ACLs or requirepass.
	Username string
	Password string
	// DB selects the logical database.
	DB int
	// DialTimeout bounds connection establishment; zero keeps the client default.
	DialTimeout time.Duration
	// PoolSize bounds the connection pool; zero keeps the client default.
	PoolSize int
}

func (cfg RedisConfig) options() *redis.Options {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultRedisAddr
	}

	return &redis.Options{
		Addr:        addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,

		ContextTimeoutEnabled: true,
	}
}

// RedisStore runs batches against a Redis server. Batches with more than one
// operation are sent as MULTI/EXEC; blocking pops map to BLPOP and BRPOP.
//
// Unlike the local backends, a command that fails at run time inside MULTI
// (for instance WRONGTYPE) does not undo the other commands of the batch.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client

	// life is cancelled by the last Close to interrupt blocking pops.
	life context.Context
	kill context.CancelFunc

	lock     sync.Mutex
	refCount int64
}

// NewRedisStore constructs a RedisStore; the connection is made by Open.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return &RedisStore{cfg: cfg}
}

// Open connects on the first reference and bumps the refcount.
func (s *RedisStore) Open() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.client != nil {
		s.refCount++

		return nil
	}

	client := redis.NewClient(s.cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout(s.cfg))
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return fmt.Errorf("%w: %s: %w", ErrRedisConnectFailed, client.Options().Addr, err)
	}

	s.client = client
	s.life, s.kill = context.WithCancel(context.Background())
	s.refCount = 1

	return nil
}

func connectTimeout(cfg RedisConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}

	return 5 * time.Second
}

// Close drops one reference and disconnects with the last one.
func (s *RedisStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.client == nil {
		return nil
	}

	s.refCount--
	if s.refCount > 0 {
		return nil
	}

	s.kill()

	err := s.client.Close()
	s.client = nil
	s.refCount = 0

	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrStoreWriteFailed, err)
	}

	return nil
}

func (s *RedisStore) conn() (*redis.Client, context.Context, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.client == nil {
		return nil, nil, ErrClosed
	}

	return s.client, s.life, nil
}

// Exec sends batch as one pipeline, wrapped in MULTI/EXEC when it holds more
// than one operation.
func (s *RedisStore) Exec(ctx context.Context, batch *Batch) ([]Reply, error) {
	if err := batch.validate(); err != nil {
		return nil, err
	}

	client, _, err := s.conn()
	if err != nil {
		return nil, err
	}

	pending := make([]func() (Reply, error), 0, batch.Len())

	queue := func(pipe redis.Pipeliner) error {
		for _, op := range batch.Ops() {
			pending = append(pending, queueRedisOp(ctx, pipe, op))
		}

		return nil
	}

	if batch.Len() > 1 {
		_, err = client.TxPipelined(ctx, queue)
	} else {
		_, err = client.Pipelined(ctx, queue)
	}

	if err != nil && !errors.Is(err, redis.Nil) && !isRedisCommandError(err) {
		return nil, classifyRedisError(err)
	}

	replies := make([]Reply, 0, len(pending))

	for i, read := range pending {
		reply, err := read()
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, batch.Ops()[i].Kind, classifyRedisError(err))
		}

		replies = append(replies, reply)
	}

	return replies, nil
}

// BlockingPop runs BLPOP or BRPOP. A zero timeout blocks until an element
// arrives, ctx is done or the store is closed. Long waits are split into
// slices of redisBlockSlice so cancellation is noticed between server calls.
// Timeouts are sent in fractional seconds, which Redis accepts since 6.0.
func (s *RedisStore) BlockingPop(
	ctx context.Context,
	key string,
	side Side,
	timeout time.Duration,
) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	client, life, err := s.conn()
	if err != nil {
		return nil, false, err
	}

	popCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer context.AfterFunc(life, cancel)()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		switch {
		case life.Err() != nil:
			return nil, false, ErrClosed
		case ctx.Err() != nil:
			return nil, false, ctx.Err()
		}

		wait := redisBlockSlice

		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, false, nil
			}

			wait = max(min(wait, remaining), redisMinBlock)
		}

		result, err := client.Do(popCtx, blockingPopCommand(side), key, formatBlockTimeout(wait)).StringSlice()

		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil && life.Err() != nil:
			return nil, false, ErrClosed
		case err != nil && ctx.Err() != nil:
			return nil, false, ctx.Err()
		case err != nil:
			return nil, false, classifyRedisError(err)
		case len(result) < 2:
			continue
		default:
			return []byte(result[1]), true, nil
		}
	}
}

func blockingPopCommand(side Side) string {
	if side == Right {
		return "BRPOP"
	}

	return "BLPOP"
}

// formatBlockTimeout renders d as seconds with millisecond precision.
// go-redis BLPop would round anything under a second up to one.
func formatBlockTimeout(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// queueRedisOp adds op to pipe and returns the function that turns the
// command's result into a Reply once the pipeline has run.
//
//nolint:cyclop,funlen // dispatch over every primitive.
func queueRedisOp(ctx context.Context, pipe redis.Pipeliner, op Op) func() (Reply, error) {
	switch op.Kind {
	case OpPushLeft, OpPushRight:
		if len(op.Values) == 0 {
			return intReply(pipe.LLen(ctx, op.Key))
		}

		args := make([]any, len(op.Values))
		for i, v := range op.Values {
			args[i] = v
		}

		if op.Kind == OpPushLeft {
			return intReply(pipe.LPush(ctx, op.Key, args...))
		}

		return intReply(pipe.RPush(ctx, op.Key, args...))
	case OpPopLeft:
		return valueReply(pipe.LPop(ctx, op.Key))
	case OpPopRight:
		return valueReply(pipe.RPop(ctx, op.Key))
	case OpIndex:
		return valueReply(pipe.LIndex(ctx, op.Key, op.Start))
	case OpTrim:
		cmd := pipe.LTrim(ctx, op.Key, op.Start, op.Stop)

		return func() (Reply, error) { return Reply{}, cmd.Err() }
	case OpRange:
		cmd := pipe.LRange(ctx, op.Key, op.Start, op.Stop)

		return func() (Reply, error) {
			raw, err := cmd.Result()
			if err != nil {
				return Reply{}, err
			}

			values := make([][]byte, len(raw))
			for i, v := range raw {
				values[i] = []byte(v)
			}

			return Reply{Values: values}, nil
		}
	case OpLength:
		return intReply(pipe.LLen(ctx, op.Key))
	case OpDelete:
		return intReply(pipe.Del(ctx, op.Key))
	case OpScoreAdd:
		if len(op.Members) == 0 {
			return intReply(pipe.ZCard(ctx, op.Key))
		}

		members := make([]redis.Z, len(op.Members))
		for i, m := range op.Members {
			members[i] = redis.Z{Score: normalizeScore(m.Score), Member: string(m.Member)}
		}

		return intReply(pipe.ZAdd(ctx, op.Key, members...))
	case OpScoreRange:
		cmd := pipe.ZRangeWithScores(ctx, op.Key, op.Start, op.Stop)

		return func() (Reply, error) {
			raw, err := cmd.Result()
			if err != nil {
				return Reply{}, err
			}

			members := make([]ScoredMember, len(raw))
			for i, z := range raw {
				member, _ := z.Member.(string)
				members[i] = ScoredMember{Member: []byte(member), Score: z.Score}
			}

			return Reply{Members: members}, nil
		}
	case OpScoreRemoveRangeByRank:
		return intReply(pipe.ZRemRangeByRank(ctx, op.Key, op.Start, op.Stop))
	case OpScoreCard:
		return intReply(pipe.ZCard(ctx, op.Key))
	default:
		return func() (Reply, error) { return Reply{}, ErrUnknownOp }
	}
}

func intReply(cmd *redis.IntCmd) func() (Reply, error) {
	return func() (Reply, error) {
		n, err := cmd.Result()

		return Reply{Count: n}, err
	}
}

func valueReply(cmd *redis.StringCmd) func() (Reply, error) {
	return func() (Reply, error) {
		v, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			return Reply{}, nil
		}

		if err != nil {
			return Reply{}, err
		}

		return Reply{Value: v, Found: true}, nil
	}
}

// isRedisCommandError reports whether err was produced by the server for a
// single command, as opposed to a transport failure.
func isRedisCommandError(err error) bool {
	var redisErr redis.Error

	return errors.As(err, &redisErr)
}

func classifyRedisError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.ErrClosed):
		return ErrClosed
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("%w: %w", ErrWrongType, err)
	case isRedisCommandError(err):
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreReadFailed, err)
	}
}
