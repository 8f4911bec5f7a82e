package member

import "context"

// Member is a guild member as the directory reports it.
type Member struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// Directory is the guild member directory. The member list may be large
// and paginated; ForEachMember yields members one at a time so callers
// can stop early without buffering the full list.
type Directory interface {
	GetMember(ctx context.Context, guildID, memberID string) (*Member, error)
	// ForEachMember calls fn for each member until fn returns stop=true,
	// fn returns an error, or the sequence ends.
	ForEachMember(ctx context.Context, guildID string, fn func(Member) (stop bool, err error)) error
}
