package idgen

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Snowflake ids
// ============================================================================
//
//   0 - 41 bit timestamp - 10 bit worker id - 12 bit sequence
//
// Ids are unique per worker and roughly time ordered, which keeps the
// unique indexes on ledger numbers append-friendly.
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within 0-%d", maxWorkerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets up the default generator. Only the first call has an effect.
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewSnowflake(workerID)
	})
	return err
}

// NextID uses the default generator, initialising it with worker 1 if Init
// was never called.
func NextID() int64 {
	_ = Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateOrderID builds the merchant order id sent to the payment gateway:
// sub_<userID>_<unixMillis>_<random>. The random part mixes the snowflake
// sequence with a uuid fragment so ids do not collide across processes.
func GenerateOrderID(userID int64) string {
	id := NextID()
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("sub_%d_%d_%s%04x", userID, time.Now().UnixMilli(), random, id&0xffff)
}

// GenerateTransactionNo returns a ledger entry number: TXN + date + snowflake id.
func GenerateTransactionNo() string {
	return fmt.Sprintf("TXN%s%d", time.Now().Format("20060102"), NextID())
}
