// Package globalban fans a single ban decision out across every chat the
// engine has observed. Per-chat failures are counted, never retried, and
// never abort the iteration; the aggregate report always satisfies
// banned + failed == number of chats in the snapshot.
package globalban

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/whisper/modengine/internal/directory"
	"github.com/whisper/modengine/internal/platform"
)

// DefaultConcurrency caps parallel ban calls so the fan-out respects the
// platform's rate limits.
const DefaultConcurrency = 4

// Ledger is the optional write-through ban ledger, recorded per chat that
// was successfully banned.
type Ledger interface {
	RecordBan(ctx context.Context, chatID, userID int64, reason string) error
}

// Report is the aggregate outcome of one fan-out.
type Report struct {
	Banned int
	Failed int
}

// Controller executes global bans. Construct with New; safe for concurrent
// use.
type Controller struct {
	actions     platform.Actions
	directory   *directory.Directory
	ledger      Ledger
	concurrency int
}

// New returns a Controller banning through actions across the chats known
// to dir. ledger may be nil.
func New(actions platform.Actions, dir *directory.Directory, ledger Ledger) *Controller {
	return &Controller{
		actions:     actions,
		directory:   dir,
		ledger:      ledger,
		concurrency: DefaultConcurrency,
	}
}

// Execute bans userID with history revocation in every chat of a directory
// snapshot taken at call time. Chats observed after the snapshot are not
// included. Each per-chat call inherits ctx; a canceled context fails the
// remaining chats rather than aborting the report.
func (c *Controller) Execute(ctx context.Context, userID int64, reason string) Report {
	chats := c.directory.KnownChats()

	var banned, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, chatID := range chats {
		chatID := chatID
		g.Go(func() error {
			if err := c.actions.BanUser(ctx, chatID, userID, true); err != nil {
				log.Printf("[globalban] ban user=%d chat=%d failed: %v", userID, chatID, err)
				failed.Add(1)
				return nil
			}
			banned.Add(1)
			if c.ledger != nil {
				if err := c.ledger.RecordBan(ctx, chatID, userID, reason); err != nil {
					log.Printf("[globalban] ledger write chat=%d failed: %v", chatID, err)
				}
			}
			return nil
		})
	}
	g.Wait()

	report := Report{Banned: int(banned.Load()), Failed: int(failed.Load())}
	log.Printf("[globalban] user=%d banned=%d failed=%d of %d chats",
		userID, report.Banned, report.Failed, len(chats))
	return report
}
