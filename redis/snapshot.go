package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-lab/netmon/model"
)

const (
	snapshotPrefix = "netmon:snapshot:"

	// ChangesChannel is the pub/sub channel announcing every stored
	// snapshot.
	ChangesChannel = "netmon:changes"

	// SnapshotTTL bounds how long the snapshot of a silent host is kept.
	SnapshotTTL = time.Hour
)

// ErrNoSnapshot is returned by GetSnapshot when the host has none stored.
var ErrNoSnapshot = errors.New("redis: no snapshot")

// Change is the message published on ChangesChannel.
type Change struct {
	Host string            `json:"host"`
	Info model.NetworkInfo `json:"info"`
}

func snapshotKey(host string) string {
	return snapshotPrefix + host
}

// SetSnapshot stores info as the latest snapshot of host, replacing the
// previous one, and announces it on ChangesChannel.
func (c *Client) SetSnapshot(ctx context.Context, host string, info model.NetworkInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, snapshotKey(host), data, SnapshotTTL).Err(); err != nil {
		return err
	}
	msg, err := json.Marshal(Change{Host: host, Info: info})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, ChangesChannel, msg).Err()
}

// GetSnapshot returns the latest snapshot stored for host.
func (c *Client) GetSnapshot(ctx context.Context, host string) (model.NetworkInfo, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(host)).Bytes()
	if err == redis.Nil {
		return model.NetworkInfo{}, fmt.Errorf("%w for %q", ErrNoSnapshot, host)
	}
	if err != nil {
		return model.NetworkInfo{}, err
	}
	var info model.NetworkInfo
	err = json.Unmarshal(data, &info)
	return info, err
}

// Subscribe calls fn with every change published until ctx is done.
// Malformed messages are skipped.
func (c *Client) Subscribe(ctx context.Context, fn func(Change)) error {
	sub := c.rdb.Subscribe(ctx, ChangesChannel)
	defer sub.Close()
	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				continue
			}
			fn(change)
		}
	}
}
