// Package export writes the list of configured group and channel chats to a
// text file, one "Name: <name>, ID: <id>" line per chat.
package export

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"tgrelay/internal/telegram"
)

type ChatGetter interface {
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
}

// GroupIDs looks up every chat in ids and writes the groups and channels
// among them to path. Chats that cannot be looked up are logged and left out.
// It returns the number of lines written.
func GroupIDs(ctx context.Context, g ChatGetter, ids []int64, path string, log zerolog.Logger) (int, error) {
	log.Info().Msg("fetching group ids")

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	written := 0
	for _, id := range ids {
		chat, err := g.GetChat(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", id).Msg("cannot look up chat for export")
			continue
		}
		if !chat.IsGroup() {
			continue
		}
		if _, err := fmt.Fprintf(w, "Name: %s, ID: %d\n", chat.DisplayName(), chat.ID); err != nil {
			return written, err
		}
		written++
	}

	if err := w.Flush(); err != nil {
		return written, err
	}

	log.Info().Str("path", path).Int("count", written).Msg("group ids have been saved")
	return written, nil
}
