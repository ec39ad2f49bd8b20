package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	srv := miniredis.RunT(t)
	return NewRedis(srv.Addr(), "", 0)
}

func TestRedisSetGetDelete(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte(`{"plan":"pro"}`), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != `{"plan":"pro"}` {
		t.Fatalf("unexpected value %q", val)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisGetJSONRoundTrip(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	type snapshot struct {
		Plan  string `json:"plan"`
		Seats int    `json:"seats"`
	}

	if err := SetJSON(ctx, c, "membership:t1", snapshot{Plan: "starter", Seats: 3}, time.Minute); err != nil {
		t.Fatalf("SetJSON error: %v", err)
	}

	var out snapshot
	ok, err := GetJSON(ctx, c, "membership:t1", &out)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if out.Plan != "starter" || out.Seats != 3 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
}

func TestRedisFromURL(t *testing.T) {
	srv := miniredis.RunT(t)
	c, err := NewRedisFromURL("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("NewRedisFromURL error: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}
