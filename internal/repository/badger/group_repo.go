package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupchat/internal/model"
	"groupchat/internal/repository"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// 键布局与 redis 实现保持一致，集合拆成每个元素一个键：
//
//	{prefix}groups:{id}                          群组索引
//	{prefix}group:{id}                           群组记录 JSON
//	{prefix}group:{id}:members:{username}        成员标记
//	{prefix}group:{id}:messages:{nanos}:{key}    消息 JSON，19 位补零保证字典序即时间序
type GroupRepository struct {
	db     *badger.DB
	prefix string
}

type groupRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Creator   string        `json:"creator"`
	Privacy   model.Privacy `json:"privacy"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewGroupRepository(db *badger.DB, prefix string) *GroupRepository {
	return &GroupRepository{db: db, prefix: prefix}
}

func (r *GroupRepository) indexPrefix() []byte {
	return []byte(r.prefix + "groups:")
}

func (r *GroupRepository) groupKey(id string) []byte {
	return []byte(fmt.Sprintf("%sgroup:%s", r.prefix, id))
}

func (r *GroupRepository) membersPrefix(id string) []byte {
	return []byte(fmt.Sprintf("%sgroup:%s:members:", r.prefix, id))
}

func (r *GroupRepository) messagesPrefix(id string) []byte {
	return []byte(fmt.Sprintf("%sgroup:%s:messages:", r.prefix, id))
}

// Create 在同一事务中检查并写入；并发事务写同一个 id 时后提交者会得到 ErrConflict
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	data, err := json.Marshal(groupRecord{
		ID:        group.ID,
		Name:      group.Name,
		Creator:   group.Creator,
		Privacy:   group.Privacy,
		CreatedAt: group.CreatedAt,
	})
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := r.groupKey(group.ID)
		if _, err := txn.Get(key); err == nil {
			return repository.ErrDuplicateEntry
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(append(r.indexPrefix(), group.ID...), nil); err != nil {
			return err
		}
		for username, ok := range group.Members {
			if !ok {
				continue
			}
			if err := txn.Set(append(r.membersPrefix(group.ID), username...), []byte("1")); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return repository.ErrDuplicateEntry
	}
	return err
}

func (r *GroupRepository) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var group *model.Group
	err := r.db.View(func(txn *badger.Txn) error {
		g, err := r.readGroup(txn, id)
		group = g
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (r *GroupRepository) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := r.indexPrefix()
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		var ids []string
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for _, id := range ids {
			g, err := r.readGroup(txn, id)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			groups = append(groups, *g)
		}
		return nil
	})
	return groups, err
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, username string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(r.membersPrefix(groupID), username...), []byte("1"))
	})
}

func (r *GroupRepository) AppendMessage(ctx context.Context, groupID string, msg *model.Message) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	msg.Key = id.String()

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%019d:%s", r.messagesPrefix(groupID), msg.CreatedAt.UnixNano(), msg.Key)
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return "", err
	}
	return msg.Key, nil
}

func (r *GroupRepository) ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := r.messagesPrefix(groupID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if !since.IsZero() {
			// 跳到 since 之后的第一条
			seek = []byte(fmt.Sprintf("%s%019d;", prefix, since.UnixNano()))
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg model.Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func (r *GroupRepository) readGroup(txn *badger.Txn, id string) (*model.Group, error) {
	item, err := txn.Get(r.groupKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec groupRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}

	members := make(map[string]bool)
	prefix := r.membersPrefix(id)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		members[strings.TrimPrefix(string(it.Item().Key()), string(prefix))] = true
	}

	return &model.Group{
		ID:        rec.ID,
		Name:      rec.Name,
		Creator:   rec.Creator,
		Privacy:   rec.Privacy,
		CreatedAt: rec.CreatedAt,
		Members:   members,
	}, nil
}
