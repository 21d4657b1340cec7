package support

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestGetRedisClientIsShared(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Cleanup(func() {
		_ = CloseRedisClient()
	})

	first, err := GetRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("GetRedisClient: %v", err)
	}
	second, err := GetRedisClient(context.Background(), "redis://ignored:1")
	if err != nil {
		t.Fatalf("second GetRedisClient: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same client instance on repeated calls")
	}
}

func TestGetRedisClientRejectsBadURL(t *testing.T) {
	t.Cleanup(func() {
		_ = CloseRedisClient()
	})
	if _, err := GetRedisClient(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected an error for a malformed redis url")
	}
}
