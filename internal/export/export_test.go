package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"tgrelay/internal/telegram"
)

type fakeChats map[int64]telegram.Chat

func (f fakeChats) GetChat(_ context.Context, id int64) (*telegram.Chat, error) {
	c, ok := f[id]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return &c, nil
}

func TestGroupIDs(t *testing.T) {
	chats := fakeChats{
		-1002409298826: {ID: -1002409298826, Type: "channel", Title: "source test"},
		-1002383817881: {ID: -1002383817881, Type: "supergroup", Title: "Googlesmart"},
		4537474080:     {ID: 4537474080, Type: "private", FirstName: "Ana"},
	}
	path := filepath.Join(t.TempDir(), "group_ids.txt")

	n, err := GroupIDs(context.Background(), chats, []int64{-1002409298826, 4537474080, -1002383817881, 777}, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("GroupIDs: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Name: source test, ID: -1002409298826\nName: Googlesmart, ID: -1002383817881\n"
	if string(data) != want {
		t.Fatalf("got %q, want %q", data, want)
	}
}

func TestGroupIDsBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "group_ids.txt")
	if _, err := GroupIDs(context.Background(), fakeChats{}, nil, path, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
