package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"cdpchain/storage"
)

// Manager is a journaled key-value view over a storage.Database. Writes are
// buffered in a dirty cache until Commit flushes them in a single batch, and
// any write made after Snapshot can be discarded with RevertToSnapshot.
type Manager struct {
	// txMu serialises Update calls so that concurrent writers never share a
	// journal window.
	txMu    sync.Mutex
	mu      sync.RWMutex
	db      storage.Database
	dirty   map[string]cachedValue
	journal journal
	hooks   []TxHook
}

// TxHook is told whether the writes buffered since the last commit were
// persisted or thrown away. Side effects that must not outlive a reverted
// update, such as emitted events, are held until Committed.
type TxHook interface {
	Committed()
	Reverted()
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]cachedValue)}
}

// AddHook registers h to observe commits and reverted updates. Hooks run with
// the update lock held and must not call Update.
func (m *Manager) AddHook(h TxHook) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

func (m *Manager) notify(committed bool) {
	m.mu.RLock()
	hooks := append([]TxHook(nil), m.hooks...)
	m.mu.RUnlock()
	for _, h := range hooks {
		if committed {
			h.Committed()
		} else {
			h.Reverted()
		}
	}
}

type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.journal.length()
}

// RevertToSnapshot discards every write performed after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id > m.journal.length() {
		return
	}
	m.journal.revert(m.dirty, id)
}

// Commit writes all pending changes to the backing database atomically and
// clears the journal. Snapshots taken before Commit become invalid.
func (m *Manager) Commit() error {
	if err := m.commit(); err != nil {
		return err
	}
	m.notify(true)
	return nil
}

func (m *Manager) commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		m.journal.reset()
		return nil
	}
	batch := m.db.NewBatch()
	for key, entry := range m.dirty {
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]cachedValue)
	m.journal.reset()
	return nil
}

// Update runs fn as one atomic unit: its writes are committed when it returns
// nil and discarded otherwise. Calls are serialised.
func (m *Manager) Update(fn func() error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snapshot := m.Snapshot()
	if err := fn(); err != nil {
		m.RevertToSnapshot(snapshot)
		m.notify(false)
		return err
	}
	if err := m.Commit(); err != nil {
		m.RevertToSnapshot(snapshot)
		m.notify(false)
		return err
	}
	return nil
}

// Pending reports the number of keys modified since the last commit.
func (m *Manager) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dirty)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.dirty[string(key)]
	m.mu.RUnlock()
	if ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.value, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) set(key []byte, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	prev, hadPrev := m.dirty[k]
	m.journal.append(journalEntry{key: k, prev: prev, hadPrev: hadPrev})
	m.dirty[k] = cachedValue{value: append([]byte(nil), value...)}
}

func (m *Manager) remove(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	prev, hadPrev := m.dirty[k]
	m.journal.append(journalEntry{key: k, prev: prev, hadPrev: hadPrev})
	m.dirty[k] = cachedValue{deleted: true}
}

func (m *Manager) loadTokenList() ([]string, error) {
	data, err := m.get(tokenListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) loadTokenMetadata(symbol string) (*TokenMetadata, error) {
	data, err := m.get(tokenMetadataKey(symbol))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := m.loadTokenMetadata(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}

	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	encodedList, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	meta, err := rlp.EncodeToBytes(&TokenMetadata{Symbol: normalized, Name: name, Decimals: decimals})
	if err != nil {
		return err
	}
	m.set(tokenListKey, encodedList)
	m.set(tokenMetadataKey(normalized), meta)
	return nil
}

// Token retrieves metadata for a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	return m.loadTokenMetadata(NormalizeSymbol(symbol))
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	return m.loadTokenList()
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return false
	}
	meta, err := m.loadTokenMetadata(normalized)
	return err == nil && meta != nil
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if meta, err := m.loadTokenMetadata(normalized); err != nil {
		return err
	} else if meta == nil {
		return fmt.Errorf("token %s not registered", normalized)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	m.set(balanceKey(addr, normalized), encoded)
	return nil
}

// Balance returns the stored balance, defaulting to zero.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	data, err := m.get(balanceKey(addr, NormalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i], members[j]) < 0 })
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	m.set(roleKey(trimmed), encoded)
	return nil
}

// RemoveRole drops an address from a role. Missing members are ignored.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	encoded, err := rlp.EncodeToBytes(kept)
	if err != nil {
		return err
	}
	m.set(roleKey(trimmed), encoded)
	return nil
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Read errors result in a false return.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// SetPaused records the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("module must not be empty")
	}
	if !paused {
		m.remove(pauseKey(trimmed))
		return nil
	}
	m.set(pauseKey(trimmed), []byte{1})
	return nil
}

// IsPaused reports whether a module has been paused.
func (m *Manager) IsPaused(module string) bool {
	data, err := m.get(pauseKey(strings.TrimSpace(module)))
	return err == nil && len(data) == 1 && data[0] == 1
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.remove(kvKey(key))
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.set(hashed, encoded)
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
