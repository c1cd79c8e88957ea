package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/GeoscienceAustralia/agdc-statistics/internal/blob/core"
)

func TestPutGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Put(ctx, "a", strings.NewReader("one"), core.PutOptions{ContentType: "text/plain"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, "a", strings.NewReader("two"), core.PutOptions{}); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	info, rc, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "one" || info.ContentType != "text/plain" {
		t.Fatalf("round trip: %q %+v", body, info)
	}

	ok, err := s.Delete(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Head(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"x/1", "x/2", "y/1"} {
		if _, err := s.Put(ctx, key, strings.NewReader("d"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "x/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "x/1" || infos[1].Key != "x/2" {
		t.Fatalf("listing: %+v", infos)
	}
}
