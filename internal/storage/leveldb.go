package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/roach88/chaincore/internal/ir"
)

// Key prefixes for LevelDB storage.
var (
	prefixContent = []byte("C:") // C:<namespace>:<address> -> <type>\x00<data>
	prefixEAV     = []byte("E:") // E:<entity>\x00<attribute>\x00<value> -> index
	keyMetaIndex  = []byte("M:eav_index")
)

const sep = 0x00

// LevelDBStore is a LevelDB directory holding both CAS namespaces and the
// EAV relations.
type LevelDBStore struct {
	db *leveldb.DB

	// mu serializes EAV index allocation.
	mu    sync.Mutex
	index int64
}

// OpenLevelDB creates or opens a LevelDB store at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	s := &LevelDBStore{db: db}
	data, err := db.Get(keyMetaIndex, nil)
	switch {
	case err == nil:
		s.index = decodeInt64(data)
	case !errors.Is(err, leveldb.ErrNotFound):
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

// CAS returns a ContentAddressableStorage view over namespace.
func (s *LevelDBStore) CAS(namespace string) *LevelDBCAS {
	return &LevelDBCAS{db: s.db, prefix: append(append(slices.Clone(prefixContent), namespace...), ':')}
}

// EAV returns the EntityAttributeValueStorage view.
func (s *LevelDBStore) EAV() *LevelDBEAV {
	return &LevelDBEAV{store: s}
}

// LevelDBCAS is one namespace of content keys.
type LevelDBCAS struct {
	db     *leveldb.DB
	prefix []byte
}

func (c *LevelDBCAS) key(addr ir.Address) []byte {
	return append(slices.Clone(c.prefix), string(addr)...)
}

// Add implements ContentAddressableStorage.
func (c *LevelDBCAS) Add(ctx context.Context, content ir.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := c.key(content.Address)
	exists, err := c.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("checking content existence: %w", err)
	}
	if exists {
		return nil
	}

	value := make([]byte, 0, len(content.Type)+1+len(content.Data))
	value = append(value, content.Type...)
	value = append(value, sep)
	value = append(value, content.Data...)
	if err := c.db.Put(key, value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing content %s: %w", content.Address.Short(), err)
	}
	return nil
}

// Fetch implements ContentAddressableStorage.
func (c *LevelDBCAS) Fetch(ctx context.Context, addr ir.Address) (ir.Content, bool, error) {
	if err := ctx.Err(); err != nil {
		return ir.Content{}, false, err
	}
	value, err := c.db.Get(c.key(addr), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ir.Content{}, false, nil
	}
	if err != nil {
		return ir.Content{}, false, fmt.Errorf("getting content %s: %w", addr.Short(), err)
	}

	i := bytes.IndexByte(value, sep)
	if i < 0 {
		return ir.Content{}, false, fmt.Errorf("content %s: malformed record", addr.Short())
	}
	return ir.Content{Address: addr, Type: string(value[:i]), Data: value[i+1:]}, true, nil
}

// Contains implements ContentAddressableStorage.
func (c *LevelDBCAS) Contains(ctx context.Context, addr ir.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := c.db.Has(c.key(addr), nil)
	if err != nil {
		return false, fmt.Errorf("checking content %s: %w", addr.Short(), err)
	}
	return ok, nil
}

// LevelDBEAV stores relations under the E: prefix.
type LevelDBEAV struct {
	store *LevelDBStore
}

func makeEAVKey(e EAVI) []byte {
	key := slices.Clone(prefixEAV)
	key = append(key, string(e.Entity)...)
	key = append(key, sep)
	key = append(key, e.Attribute...)
	key = append(key, sep)
	key = append(key, string(e.Value)...)
	return key
}

func parseEAVKey(key []byte) (EAVI, bool) {
	parts := bytes.Split(bytes.TrimPrefix(key, prefixEAV), []byte{sep})
	if len(parts) != 3 {
		return EAVI{}, false
	}
	return EAVI{
		Entity:    ir.Address(parts[0]),
		Attribute: string(parts[1]),
		Value:     ir.Address(parts[2]),
	}, true
}

// AddEAVI implements EntityAttributeValueStorage.
func (s *LevelDBEAV) AddEAVI(ctx context.Context, e EAVI) (EAVI, error) {
	if err := ctx.Err(); err != nil {
		return EAVI{}, err
	}
	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	key := makeEAVKey(e)
	data, err := st.db.Get(key, nil)
	if err == nil {
		e.Index = decodeInt64(data)
		return e, nil
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return EAVI{}, fmt.Errorf("checking eavi: %w", err)
	}

	next := st.index + 1
	batch := new(leveldb.Batch)
	batch.Put(key, encodeInt64(next))
	batch.Put(keyMetaIndex, encodeInt64(next))
	if err := st.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return EAVI{}, fmt.Errorf("writing eavi: %w", err)
	}
	st.index = next
	e.Index = next
	return e, nil
}

// FetchEAVI implements EntityAttributeValueStorage. The scan is narrowed to
// the entity (and attribute) prefix when those are set.
func (s *LevelDBEAV) FetchEAVI(ctx context.Context, q EAVIQuery) ([]EAVI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := slices.Clone(prefixEAV)
	if q.Entity != "" {
		prefix = append(prefix, string(q.Entity)...)
		prefix = append(prefix, sep)
		if q.Attribute != "" {
			prefix = append(prefix, q.Attribute...)
			prefix = append(prefix, sep)
		}
	}

	iter := s.store.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []EAVI
	for iter.Next() {
		e, ok := parseEAVKey(iter.Key())
		if !ok || !q.Matches(e) {
			continue
		}
		e.Index = decodeInt64(iter.Value())
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterating eavi: %w", err)
	}

	slices.SortFunc(out, func(a, b EAVI) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})
	return out, nil
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(data []byte) int64 {
	if len(data) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}
