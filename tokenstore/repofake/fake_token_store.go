package repofake

import (
	"sync"

	"github.com/BikyaITI/bikya-go-client/tokenstore"
)

var _ tokenstore.Repo = (*FakeTokenStore)(nil)

// FakeTokenStore is an in-memory token store for tests. It counts Save and
// Clear calls so tests can assert on persistence behaviour.
type FakeTokenStore struct {
	tokens     *tokenstore.Tokens
	SaveCalls  int
	ClearCalls int
	lock       sync.Mutex
}

func NewFakeTokenStore() *FakeTokenStore {
	return &FakeTokenStore{}
}

func (ts *FakeTokenStore) Save(tokens *tokenstore.Tokens) error {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	copied := *tokens
	ts.tokens = &copied
	ts.SaveCalls++
	return nil
}

func (ts *FakeTokenStore) Get() (*tokenstore.Tokens, error) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.tokens == nil {
		return nil, nil
	}
	copied := *ts.tokens
	return &copied, nil
}

func (ts *FakeTokenStore) Clear() error {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	ts.tokens = nil
	ts.ClearCalls++
	return nil
}
