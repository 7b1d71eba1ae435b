package saga

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/snapbuy/snapbuy/pkg/stages"
)

// DeriveKey builds the checkout idempotency key used when the caller did not
// supply one. Two runs with the same inputs derive different keys because the
// run id participates; retries within one run derive the same key.
func DeriveKey(runID, candidateID string, fields stages.PaymentFields) string {
	fp := sha256.Sum256([]byte(stages.CardDigits(fields.CardNumber)))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%.2f",
		runID, candidateID, hex.EncodeToString(fp[:]), fields.AmountUSD)))
	return hex.EncodeToString(sum[:])
}

// ReceiptStore maps idempotency keys to settled receipts so a repeated
// checkout replays the stored receipt instead of charging again.
type ReceiptStore interface {
	Get(ctx context.Context, key string) (*stages.Receipt, bool, error)
	Put(ctx context.Context, key string, receipt *stages.Receipt) error
}

// MemoryReceiptStore keeps receipts in process memory.
type MemoryReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]*stages.Receipt
}

// NewMemoryReceiptStore creates an empty in-memory receipt store.
func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{receipts: make(map[string]*stages.Receipt)}
}

func (s *MemoryReceiptStore) Get(_ context.Context, key string) (*stages.Receipt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[key]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (s *MemoryReceiptStore) Put(_ context.Context, key string, receipt *stages.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *receipt
	s.receipts[key] = &cp
	return nil
}
