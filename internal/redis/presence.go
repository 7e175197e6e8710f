package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Presence mirrors relay room membership into Redis sets so dashboards and
// other processes can see who is connected:
//
//	<prefix>:rooms                 set of live room ids
//	<prefix>:rooms:<room>:peers    set of peer ids in room
//
// It is written to, never read by the relay.
type Presence struct {
	rdb    *redis.Client
	prefix string
}

// NewPresence builds a mirror scoped under prefix (e.g., "relay").
func NewPresence(rdb *redis.Client, prefix string) *Presence {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "relay"
	}
	return &Presence{rdb: rdb, prefix: p}
}

func (p *Presence) roomsKey() string { return p.prefix + ":rooms" }

func (p *Presence) peersKey(room string) string {
	return fmt.Sprintf("%s:rooms:%s:peers", p.prefix, room)
}

// Reset deletes every key under the prefix. State does not survive a
// restart, so stale sets from a previous run are dropped at startup.
func (p *Presence) Reset(ctx context.Context) error {
	iter := p.rdb.Scan(ctx, 0, p.prefix+":rooms*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return p.rdb.Del(ctx, keys...).Err()
}

func (p *Presence) AddPeer(ctx context.Context, room, peer string) error {
	pipe := p.rdb.TxPipeline()
	_ = pipe.SAdd(ctx, p.peersKey(room), peer)
	_ = pipe.SAdd(ctx, p.roomsKey(), room)
	_, err := pipe.Exec(ctx)
	return err
}

// removePeer drops the peer and prunes an emptied room atomically.
var removePeer = redis.NewScript(`
redis.call("SREM", KEYS[1], ARGV[1])
if redis.call("SCARD", KEYS[1]) == 0 then
	redis.call("SREM", KEYS[2], ARGV[2])
end
return 1
`)

// RemovePeer drops peer and, once the room's set is empty, the room itself.
func (p *Presence) RemovePeer(ctx context.Context, room, peer string) error {
	keys := []string{p.peersKey(room), p.roomsKey()}
	return removePeer.Run(ctx, p.rdb, keys, peer, room).Err()
}

// Rooms lists the mirrored room ids.
func (p *Presence) Rooms(ctx context.Context) ([]string, error) {
	return p.rdb.SMembers(ctx, p.roomsKey()).Result()
}

// Peers lists the mirrored peer ids of room.
func (p *Presence) Peers(ctx context.Context, room string) ([]string, error) {
	return p.rdb.SMembers(ctx, p.peersKey(room)).Result()
}
