package fiatbridge

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/id"
)

// keyedMutex hands out one mutex per key. Entries are dropped when the last
// holder releases them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is held and returns the function that releases it.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func permissionLockKey(user, token common.Address) string {
	return "perm:" + user.Hex() + ":" + token.Hex()
}

func transactionLockKey(txID id.TxID) string {
	return "tx:" + txID.Hex()
}

func feeLockKey(token common.Address) string {
	return "fee:" + token.Hex()
}
