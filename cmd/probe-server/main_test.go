package main

import (
	"context"
	"testing"
	"time"

	"github.com/m-lab/go/osx"
)

func Test_ContextCancelsMain(t *testing.T) {
	for _, ev := range []struct{ key, value string }{
		{"ADDR", "localhost:0"},
		{"PROMETHEUSX_LISTEN_ADDRESS", "localhost:0"},
		{"MAX_CONCURRENT", "4"},
	} {
		defer osx.MustSetenv(ev.key, ev.value)()
	}

	ctx, cancel = context.WithCancel(context.Background())
	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel()
	}()
	main()
}
