package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/m-lab/netmon/model"
)

func clientSetup(t *testing.T) *Client {
	client := NewClient("localhost:6379")
	// Try to ping Redis to see if it's available
	if err := client.Ping(context.Background()); err != nil {
		t.Skip("Redis not available, skipping tests. Start Redis with: docker run -d -p 6379:6379 redis:latest")
	}
	return client
}

func Test_SetAndGetSnapshot(t *testing.T) {
	redisClient := clientSetup(t)
	defer redisClient.Close()
	ctx := context.Background()
	host := "test-host-001"

	infos := []model.NetworkInfo{
		{Online: true, Type: model.TypeWiFi, Speed: model.SpeedGood, Downlink: model.Float(4)},
		{Online: false, Type: model.TypeOffline, Speed: model.SpeedUnknown},
	}
	for _, info := range infos {
		if err := redisClient.SetSnapshot(ctx, host, info); err != nil {
			t.Fatalf("Failed to set snapshot: %v", err)
		}
		got, err := redisClient.GetSnapshot(ctx, host)
		if err != nil {
			t.Fatalf("Failed to get snapshot: %v", err)
		}
		if diff := cmp.Diff(info, got); diff != "" {
			t.Errorf("GetSnapshot() mismatch (-want +got):\n%s", diff)
		}
	}

	// Cleanup
	_ = redisClient.rdb.Del(ctx, snapshotKey(host)).Err()
}

func Test_GetSnapshotMissing(t *testing.T) {
	redisClient := clientSetup(t)
	defer redisClient.Close()
	_, err := redisClient.GetSnapshot(context.Background(), "test-host-never-written")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("GetSnapshot() error = %v, want ErrNoSnapshot", err)
	}
}

func Test_Subscribe(t *testing.T) {
	redisClient := clientSetup(t)
	defer redisClient.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan Change, 1)
	done := make(chan error, 1)
	go func() {
		done <- redisClient.Subscribe(ctx, func(c Change) {
			select {
			case got <- c:
			default:
			}
		})
	}()

	info := model.NetworkInfo{Online: true, Type: model.TypeEthernet, Speed: model.SpeedExcellent}
	// Publish until the subscription is established.
	for {
		if err := redisClient.SetSnapshot(ctx, "test-host-002", info); err != nil {
			t.Fatalf("Failed to set snapshot: %v", err)
		}
		select {
		case c := <-got:
			if c.Host != "test-host-002" || !c.Info.Equal(info) {
				t.Errorf("Subscribe() got %+v", c)
			}
			cancel()
			<-done
			return
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("no change received")
		}
	}
}

type fakeStore struct {
	stored chan model.NetworkInfo
	block  chan struct{}
	err    error
}

func (f *fakeStore) SetSnapshot(ctx context.Context, host string, info model.NetworkInfo) error {
	if f.block != nil {
		<-f.block
	}
	f.stored <- info
	return f.err
}

func TestSink(t *testing.T) {
	store := &fakeStore{stored: make(chan model.NetworkInfo, 10)}
	s := NewSink(store, "h", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	want := model.NetworkInfo{Online: true, Type: model.TypeCellular4G, Speed: model.SpeedGood}
	s.Listen(want)
	select {
	case got := <-store.stored:
		if !got.Equal(want) {
			t.Errorf("stored %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot was not stored")
	}
}

func TestSink_LatestOnly(t *testing.T) {
	store := &fakeStore{
		stored: make(chan model.NetworkInfo, 10),
		block:  make(chan struct{}),
		err:    errors.New("down"),
	}
	s := NewSink(store, "h", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	first := model.NetworkInfo{Online: true, Type: model.TypeWiFi, Speed: model.SpeedSlow}
	s.Listen(first)
	// Wait for Run to pick up first and block inside SetSnapshot.
	for {
		s.mu.Lock()
		empty := s.pending == nil
		s.mu.Unlock()
		if empty {
			break
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		s.Listen(model.NetworkInfo{Online: true, Type: model.TypeWiFi, Speed: model.SpeedGood, Downlink: model.Float(float64(i))})
	}
	close(store.block)

	if got := <-store.stored; !got.Equal(first) {
		t.Errorf("first stored %+v, want %+v", got, first)
	}
	got := <-store.stored
	if got.Downlink == nil || *got.Downlink != 4 {
		t.Errorf("second stored %+v, want the latest snapshot", got)
	}
	select {
	case extra := <-store.stored:
		t.Errorf("unexpected extra write %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
