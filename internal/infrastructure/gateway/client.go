package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/caseflow/caseflow/internal/domain/member"
)

// Client talks to the chat gateway sidecar that owns the actual platform
// connection. It implements ticket.ChannelManager and member.Directory.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
	logger   zerolog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:  baseURL,
		http:     httpClient,
		pageSize: 100,
		logger:   logger.With().Str("service", "gateway").Logger(),
	}
}

type createChannelRequest struct {
	OwnerIDs      []string `json:"ownerIds"`
	ViewerRoleIDs []string `json:"viewerRoleIds"`
}

type createChannelResponse struct {
	ChannelID string `json:"channelId"`
}

// CreateRestrictedChannel provisions a channel visible only to the given
// members and roles.
func (c *Client) CreateRestrictedChannel(ctx context.Context, ownerIDs []string, viewerRoleIDs []string) (string, error) {
	body, err := json.Marshal(createChannelRequest{OwnerIDs: ownerIDs, ViewerRoleIDs: viewerRoleIDs})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/channels", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d creating channel", resp.StatusCode)
	}
	var out createChannelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ChannelID, nil
}

// DeleteChannel removes a channel. Deleting an already-deleted channel
// is not an error; the gateway reports 404 and we report false.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/channels/"+url.PathEscape(channelID), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("gateway returned %d deleting channel", resp.StatusCode)
	}
}

// GetMember fetches a single member by id. Unknown members are nil, not
// an error.
func (c *Client) GetMember(ctx context.Context, guildID, memberID string) (*member.Member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/guilds/"+url.PathEscape(guildID)+"/members/"+url.PathEscape(memberID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d fetching member", resp.StatusCode)
	}
	var m member.Member
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

type memberPage struct {
	Members []member.Member `json:"members"`
	After   string          `json:"after"`
}

// ForEachMember pages through the guild member list, yielding one
// member at a time so callers can stop without fetching the remainder.
func (c *Client) ForEachMember(ctx context.Context, guildID string, fn func(member.Member) (bool, error)) error {
	after := ""
	for {
		page, err := c.fetchMemberPage(ctx, guildID, after)
		if err != nil {
			return err
		}
		for _, m := range page.Members {
			stop, err := fn(m)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
		if page.After == "" || len(page.Members) == 0 {
			return nil
		}
		after = page.After
	}
}

func (c *Client) fetchMemberPage(ctx context.Context, guildID, after string) (*memberPage, error) {
	u := c.baseURL + "/guilds/" + url.PathEscape(guildID) + "/members?limit=" + strconv.Itoa(c.pageSize)
	if after != "" {
		u += "&after=" + url.QueryEscape(after)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d listing members", resp.StatusCode)
	}
	var page memberPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
