package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"groupchat/internal/model"
	"groupchat/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	GroupIndexKey     = "groups"
	GroupKeyPrefix    = "group"
	MembersKeySuffix  = "members"
	MessagesKeySuffix = "messages"
)

// 检查 + 写入在同一个脚本里完成，避免两个并发创建同时通过存在性检查
// KEYS[1]=群组记录 KEYS[2]=群组索引 KEYS[3]=成员集合
// ARGV[1]=记录 JSON ARGV[2]=群组 id ARGV[3..]=初始成员
var createGroupScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[2])
for i = 3, #ARGV do
  redis.call("SADD", KEYS[3], ARGV[i])
end
return 1
`)

// groupRecord 群组记录本体，成员单独存放在集合中
type groupRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Creator   string        `json:"creator"`
	Privacy   model.Privacy `json:"privacy"`
	CreatedAt time.Time     `json:"created_at"`
}

type GroupRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewGroupRepository(rdb *redis.Client, prefix string) *GroupRepository {
	return &GroupRepository{rdb: rdb, prefix: prefix}
}

func (r *GroupRepository) indexKey() string {
	return r.prefix + GroupIndexKey
}

func (r *GroupRepository) groupKey(id string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, GroupKeyPrefix, id)
}

func (r *GroupRepository) membersKey(id string) string {
	return fmt.Sprintf("%s%s:%s:%s", r.prefix, GroupKeyPrefix, id, MembersKeySuffix)
}

func (r *GroupRepository) messagesKey(id string) string {
	return fmt.Sprintf("%s%s:%s:%s", r.prefix, GroupKeyPrefix, id, MessagesKeySuffix)
}

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

	args := []any{string(data), group.ID}
	for username, ok := range group.Members {
		if ok {
			args = append(args, username)
		}
	}

	created, err := createGroupScript.Run(ctx, r.rdb,
		[]string{r.groupKey(group.ID), r.indexKey(), r.membersKey(group.ID)},
		args...,
	).Int()
	if err != nil {
		return err
	}
	if created != 1 {
		return repository.ErrDuplicateEntry
	}
	return nil
}

func (r *GroupRepository) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var (
		recCmd     *redis.StringCmd
		membersCmd *redis.StringSliceCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		recCmd = p.Get(ctx, r.groupKey(id))
		membersCmd = p.SMembers(ctx, r.membersKey(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return toGroup(recCmd, membersCmd)
}

func (r *GroupRepository) List(ctx context.Context) ([]model.Group, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	recCmds := make([]*redis.StringCmd, len(ids))
	memberCmds := make([]*redis.StringSliceCmd, len(ids))
	_, err = r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			recCmds[i] = p.Get(ctx, r.groupKey(id))
			memberCmds[i] = p.SMembers(ctx, r.membersKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	groups := make([]model.Group, 0, len(ids))
	for i := range ids {
		g, err := toGroup(recCmds[i], memberCmds[i])
		if errors.Is(err, repository.ErrNotFound) {
			// 索引里残留的 id，跳过
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, username string) error {
	return r.rdb.SAdd(ctx, r.membersKey(groupID), username).Err()
}

// AppendMessage 消息存入有序集合，score 为毫秒时间戳，member 为带生成键的 JSON
func (r *GroupRepository) AppendMessage(ctx context.Context, groupID string, msg *model.Message) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	msg.Key = key.String()

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	err = r.rdb.ZAdd(ctx, r.messagesKey(groupID), redis.Z{
		Score:  float64(msg.CreatedAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return "", err
	}
	return msg.Key, nil
}

func (r *GroupRepository) ListMessages(ctx context.Context, groupID string, since time.Time) ([]model.Message, error) {
	lower := "-inf"
	if !since.IsZero() {
		// 毫秒精度下同一毫秒内的消息也要取回，再按纳秒过滤
		lower = strconv.FormatInt(since.UnixMilli(), 10)
	}
	raw, err := r.rdb.ZRangeByScore(ctx, r.messagesKey(groupID), &redis.ZRangeBy{
		Min: lower,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(raw))
	for _, s := range raw {
		var msg model.Message
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			return nil, err
		}
		if !since.IsZero() && !msg.CreatedAt.After(since) {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func toGroup(recCmd *redis.StringCmd, membersCmd *redis.StringSliceCmd) (*model.Group, error) {
	data, err := recCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec groupRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	usernames, err := membersCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	members := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		members[u] = true
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
