package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groupchat/internal/repository"

	"github.com/dgraph-io/badger/v4"
)

type TokenRepository struct {
	db     *badger.DB
	prefix string
}

func NewTokenRepository(db *badger.DB, prefix string) *TokenRepository {
	return &TokenRepository{db: db, prefix: prefix}
}

func (r *TokenRepository) key(username string) []byte {
	return []byte(fmt.Sprintf("%slogin:user:token:%s", r.prefix, username))
}

func (r *TokenRepository) refreshKey(username string) []byte {
	return []byte(fmt.Sprintf("%slogin:user:refresh:%s", r.prefix, username))
}

func (r *TokenRepository) AddUserToken(ctx context.Context, username, token string, ttl time.Duration) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(r.key(username), []byte(token)).WithTTL(ttl))
	})
}

func (r *TokenRepository) GetUserToken(ctx context.Context, username string) (string, error) {
	return r.get(r.key(username))
}

func (r *TokenRepository) AddRefreshID(ctx context.Context, username, jti string, ttl time.Duration) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(r.refreshKey(username), []byte(jti)).WithTTL(ttl))
	})
}

func (r *TokenRepository) GetRefreshID(ctx context.Context, username string) (string, error) {
	return r.get(r.refreshKey(username))
}

func (r *TokenRepository) get(key []byte) (string, error) {
	var token string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		token = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", repository.ErrNotFound
	}
	return token, err
}

// ExtendUserToken badger 没有单独续期的接口，读出后带新 TTL 重写
func (r *TokenRepository) ExtendUserToken(ctx context.Context, username string, ttl time.Duration) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(username))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(r.key(username), val).WithTTL(ttl))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func (r *TokenRepository) DeleteUserToken(ctx context.Context, username string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(r.key(username)); err != nil {
			return err
		}
		return txn.Delete(r.refreshKey(username))
	})
}
