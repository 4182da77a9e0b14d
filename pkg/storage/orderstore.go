package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openlend/debtkernel/pkg/order"
)

// Key schema:
//
//	ord:<commitment-hash>       → InterchangeOrder JSON
//	deb:<address>:<hash>        → commitment hash (debtor index)
const (
	prefixOrder  = "ord:"
	prefixDebtor = "deb:"
)

// orderKey returns the key for an order
// Format: "ord:{commitmentHash}"
func orderKey(hash common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrder, hash.Hex()))
}

// debtorKey returns the index key tying a debtor to one of their orders
// Format: "deb:{address}:{commitmentHash}"
func debtorKey(debtor common.Address, hash common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixDebtor, debtor.Hex(), hash.Hex()))
}

// debtorPrefix returns the prefix for all orders of a debtor
// Format: "deb:{address}:"
func debtorPrefix(debtor common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixDebtor, debtor.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// OrderStore persists committed order records in Pebble, keyed by their
// commitment hash. Records travel through the store in interchange form,
// so anything read back goes through the same hash-recomputation check as
// an order received over the wire.
type OrderStore struct {
	db  *pebble.DB
	log *zap.Logger
}

func NewOrderStore(path string, logger *zap.Logger) (*OrderStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open order store: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderStore{db: db, log: logger}, nil
}

func (s *OrderStore) Close() error { return s.db.Close() }

// SaveOrder persists a committed record. Saving derives the commitment
// hash, so a still-negotiable record is refused by the hash derivation
// itself rather than by a separate state check.
func (s *OrderStore) SaveOrder(r *order.Record) (common.Hash, error) {
	hash, err := r.CommitmentHash()
	if err != nil {
		return common.Hash{}, err
	}

	wire, err := r.Interchange()
	if err != nil {
		return common.Hash{}, err
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to marshal order: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(orderKey(hash), data, nil); err != nil {
		return common.Hash{}, err
	}
	if err := batch.Set(debtorKey(r.Debtor(), hash), hash.Bytes(), nil); err != nil {
		return common.Hash{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return common.Hash{}, fmt.Errorf("failed to save order: %w", err)
	}

	s.log.Info("order saved", zap.String("hash", hash.Hex()))
	return hash, nil
}

// GetOrder loads an order by commitment hash.
// Returns (nil, nil) if the order doesn't exist.
func (s *OrderStore) GetOrder(hash common.Hash) (*order.Record, error) {
	data, closer, err := s.db.Get(orderKey(hash))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	return s.decode(data)
}

// ListOrders loads every stored order. Entries that no longer decode or
// whose hash no longer checks out are skipped, not fatal; one corrupt row
// must not take the listing down.
func (s *OrderStore) ListOrders() ([]*order.Record, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []*order.Record
	for iter.First(); iter.Valid(); iter.Next() {
		r, err := s.decode(iter.Value())
		if err != nil {
			s.log.Warn("skipping undecodable order", zap.String("key", string(iter.Key())), zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// ListByDebtor loads every order a debtor has committed to.
func (s *OrderStore) ListByDebtor(debtor common.Address) ([]*order.Record, error) {
	prefix := debtorPrefix(debtor)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []*order.Record
	for iter.First(); iter.Valid(); iter.Next() {
		r, err := s.GetOrder(common.BytesToHash(iter.Value()))
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue // index row outlived the order
		}
		records = append(records, r)
	}
	return records, nil
}

// DeleteOrder removes an order and its debtor-index row.
func (s *OrderStore) DeleteOrder(hash common.Hash) error {
	r, err := s.GetOrder(hash)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(orderKey(hash), nil); err != nil {
		return err
	}
	if err := batch.Delete(debtorKey(r.Debtor(), hash), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (s *OrderStore) decode(data []byte) (*order.Record, error) {
	var wire order.InterchangeOrder
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return order.FromInterchange(&wire, s.log)
}
