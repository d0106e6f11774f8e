package stats

import "context"

// Lookup is the external player-stat collaborator consumed by the command
// dispatcher. Implementations may be slow; callers must invoke them from
// worker goroutines only, never from the line-reading path.
type Lookup interface {
	// GuildInfo returns a one-line rank/guild summary for a player, or an
	// empty string when nothing useful was found.
	GuildInfo(ctx context.Context, username string) (string, error)
	// GamemodeStats returns a formatted stat line for a player in the given
	// game mode, narrowed to a subcategory ("all" for the full line).
	GamemodeStats(ctx context.Context, username, mode, subcategory string) (string, error)
}
