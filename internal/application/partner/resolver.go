package partner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/caseflow/caseflow/internal/domain/member"
	"github.com/caseflow/caseflow/internal/domain/ticket"
)

var (
	mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)
	numericRe = regexp.MustCompile(`^\d+$`)
)

// Resolver matches a free-text partner reference against the member
// directory. Resolution failure is not an error: a midman case is
// created either way, flagged for manual attach.
type Resolver struct {
	dir     member.Directory
	retries int
	backoff time.Duration
	logger  zerolog.Logger
}

// NewResolver creates a resolver. Directory reads are idempotent, so a
// failed scan is retried once after backoff before giving up.
func NewResolver(dir member.Directory, backoff time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{
		dir:     dir,
		retries: 1,
		backoff: backoff,
		logger:  logger.With().Str("service", "partner").Logger(),
	}
}

// Resolve tries, in order: mention syntax, numeric id, case-insensitive
// exact username/display-name match, then substring match. A well-formed
// mention or id that matches no member resolves to nil without falling
// through to the text stages; those are reserved for free text.
// Substring matches pick the lowest member id so the result does not
// depend on directory iteration order.
func (r *Resolver) Resolve(ctx context.Context, guildID, reference string) (*member.Member, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, nil
	}

	if m := mentionRe.FindStringSubmatch(ref); m != nil {
		return r.lookupID(ctx, guildID, m[1])
	}
	if numericRe.MatchString(ref) {
		return r.lookupID(ctx, guildID, ref)
	}
	return r.scan(ctx, guildID, strings.ToLower(ref))
}

func (r *Resolver) lookupID(ctx context.Context, guildID, memberID string) (*member.Member, error) {
	var m *member.Member
	err := r.withRetry(ctx, func() error {
		var err error
		m, err = r.dir.GetMember(ctx, guildID, memberID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: member lookup: %v", ticket.ErrExternalCallFailed, err)
	}
	return m, nil
}

func (r *Resolver) scan(ctx context.Context, guildID, needle string) (*member.Member, error) {
	var exact *member.Member
	var substring *member.Member
	err := r.withRetry(ctx, func() error {
		exact, substring = nil, nil
		return r.dir.ForEachMember(ctx, guildID, func(m member.Member) (bool, error) {
			username := strings.ToLower(m.Username)
			display := strings.ToLower(m.DisplayName)
			if username == needle || display == needle {
				mm := m
				exact = &mm
				return true, nil
			}
			if strings.Contains(username, needle) || strings.Contains(display, needle) {
				if substring == nil || lessID(m.ID, substring.ID) {
					mm := m
					substring = &mm
				}
			}
			return false, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: member scan: %v", ticket.ErrExternalCallFailed, err)
	}
	if exact != nil {
		return exact, nil
	}
	if substring != nil {
		r.logger.Debug().Str("member_id", substring.ID).Msg("partner resolved by substring")
	}
	return substring, nil
}

func (r *Resolver) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	for attempt := 0; err != nil && attempt < r.retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff):
		}
		err = fn()
	}
	return err
}

// lessID orders snowflake-style numeric ids: shorter is smaller, equal
// lengths compare lexicographically.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
