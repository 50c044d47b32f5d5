// Package discordfake is an in-memory platform client for tests. It
// implements model.Discord with per-guild state and configurable
// permission denials.
package discordfake

import (
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Operation names accepted by Deny.
const (
	OpBan           = "ban"
	OpUnban         = "unban"
	OpKick          = "kick"
	OpTimeout       = "timeout"
	OpRoleAdd       = "roleAdd"
	OpRoleRemove    = "roleRemove"
	OpMemberEdit    = "memberEdit"
	OpWebhookCreate = "webhookCreate"
	OpChannelSend   = "channelSend"
)

type Fake struct {
	mu sync.Mutex

	Users    map[string]*discordgo.User
	Guilds   map[string]*discordgo.Guild
	Members  map[string]map[string]*discordgo.Member
	Bans     map[string]map[string]*discordgo.GuildBan
	Timeouts map[string]map[string]*time.Time

	// ChannelMessages and WebhookMessages record deliveries by
	// channel id and webhook id.
	ChannelMessages map[string][]*discordgo.MessageSend
	WebhookMessages map[string][]*discordgo.WebhookParams

	// MemberEditReasons records the audit log reason of each member
	// edit, keyed "guildID/userID".
	MemberEditReasons map[string][]string

	denied map[string]map[string]bool
}

func New() *Fake {
	return &Fake{
		Users:             make(map[string]*discordgo.User),
		Guilds:            make(map[string]*discordgo.Guild),
		Members:           make(map[string]map[string]*discordgo.Member),
		Bans:              make(map[string]map[string]*discordgo.GuildBan),
		Timeouts:          make(map[string]map[string]*time.Time),
		ChannelMessages:   make(map[string][]*discordgo.MessageSend),
		WebhookMessages:   make(map[string][]*discordgo.WebhookParams),
		MemberEditReasons: make(map[string][]string),
		denied:            make(map[string]map[string]bool),
	}
}

func restError(status int) error {
	return &discordgo.RESTError{
		Response: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
		},
	}
}

func errForbidden() error { return restError(http.StatusForbidden) }
func errNotFound() error  { return restError(http.StatusNotFound) }

// auditReason applies the request options to a scratch request and
// extracts the audit log header, the same way the real client carries
// discordgo.WithAuditLogReason.
func auditReason(options []discordgo.RequestOption) string {
	req, err := http.NewRequest(http.MethodPatch, "https://discordfake.invalid", nil)
	if err != nil {
		return ""
	}
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg.Request.Header.Get("X-Audit-Log-Reason")
}

// Deny makes the given operation fail with 403. The key is a guild id
// for guild-scoped operations, a channel id for OpChannelSend.
func (f *Fake) Deny(key, op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied[key] == nil {
		f.denied[key] = make(map[string]bool)
	}
	f.denied[key][op] = true
}

func (f *Fake) isDenied(guildID, op string) bool {
	return f.denied[guildID][op]
}

// AddUser registers a resolvable user.
func (f *Fake) AddUser(userID string) *discordgo.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &discordgo.User{ID: userID, Username: "user-" + userID}
	f.Users[userID] = user
	return user
}

// AddGuild registers a guild with its implicit everyone role plus the
// given extra roles.
func (f *Fake) AddGuild(guildID, ownerID string, roles ...*discordgo.Role) *discordgo.Guild {
	f.mu.Lock()
	defer f.mu.Unlock()
	guild := &discordgo.Guild{
		ID:      guildID,
		OwnerID: ownerID,
		Roles:   append([]*discordgo.Role{{ID: guildID, Position: 0}}, roles...),
	}
	f.Guilds[guildID] = guild
	f.Members[guildID] = make(map[string]*discordgo.Member)
	f.Bans[guildID] = make(map[string]*discordgo.GuildBan)
	f.Timeouts[guildID] = make(map[string]*time.Time)
	return guild
}

// AddMember places a user in a guild with the given roles. The user is
// registered if unknown.
func (f *Fake) AddMember(guildID, userID string, roleIDs ...string) *discordgo.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.Users[userID]
	if !ok {
		user = &discordgo.User{ID: userID, Username: "user-" + userID}
		f.Users[userID] = user
	}
	member := &discordgo.Member{GuildID: guildID, User: user, Roles: roleIDs}
	f.Members[guildID][userID] = member
	return member
}

func (f *Fake) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.Users[userID]
	if !ok {
		return nil, errNotFound()
	}
	return user, nil
}

func (f *Fake) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	guild, ok := f.Guilds[guildID]
	if !ok {
		return nil, errNotFound()
	}
	return guild, nil
}

func (f *Fake) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.Members[guildID][userID]
	if !ok {
		return nil, errNotFound()
	}
	return member, nil
}

func (f *Fake) GuildMemberEdit(guildID, userID string, data *discordgo.GuildMemberParams, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpMemberEdit) {
		return nil, errForbidden()
	}
	member, ok := f.Members[guildID][userID]
	if !ok {
		return nil, errNotFound()
	}
	if data.Roles != nil {
		member.Roles = append([]string{}, (*data.Roles)...)
	}
	key := guildID + "/" + userID
	f.MemberEditReasons[key] = append(f.MemberEditReasons[key], auditReason(options))
	return member, nil
}

func (f *Fake) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpRoleAdd) {
		return errForbidden()
	}
	member, ok := f.Members[guildID][userID]
	if !ok {
		return errNotFound()
	}
	for _, id := range member.Roles {
		if id == roleID {
			return nil
		}
	}
	member.Roles = append(member.Roles, roleID)
	return nil
}

func (f *Fake) GuildMemberRoleRemove(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpRoleRemove) {
		return errForbidden()
	}
	member, ok := f.Members[guildID][userID]
	if !ok {
		return errNotFound()
	}
	roles := member.Roles[:0]
	for _, id := range member.Roles {
		if id != roleID {
			roles = append(roles, id)
		}
	}
	member.Roles = roles
	return nil
}

func (f *Fake) GuildMemberTimeout(guildID, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpTimeout) {
		return errForbidden()
	}
	member, ok := f.Members[guildID][userID]
	if !ok {
		return errNotFound()
	}
	f.Timeouts[guildID][userID] = until
	member.CommunicationDisabledUntil = until
	return nil
}

func (f *Fake) GuildMemberDeleteWithReason(guildID, userID, reason string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpKick) {
		return errForbidden()
	}
	if _, ok := f.Members[guildID][userID]; !ok {
		return errNotFound()
	}
	delete(f.Members[guildID], userID)
	return nil
}

func (f *Fake) GuildBanCreateWithReason(guildID, userID, reason string, days int, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpBan) {
		return errForbidden()
	}
	if _, ok := f.Guilds[guildID]; !ok {
		return errNotFound()
	}
	f.Bans[guildID][userID] = &discordgo.GuildBan{
		Reason: reason,
		User:   f.Users[userID],
	}
	delete(f.Members[guildID], userID)
	return nil
}

func (f *Fake) GuildBan(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.GuildBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ban, ok := f.Bans[guildID][userID]
	if !ok {
		return nil, errNotFound()
	}
	return ban, nil
}

func (f *Fake) GuildBanDelete(guildID, userID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(guildID, OpUnban) {
		return errForbidden()
	}
	if _, ok := f.Bans[guildID][userID]; !ok {
		return errNotFound()
	}
	delete(f.Bans[guildID], userID)
	return nil
}

func (f *Fake) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(channelID, OpChannelSend) {
		return nil, errForbidden()
	}
	f.ChannelMessages[channelID] = append(f.ChannelMessages[channelID], data)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *Fake) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *Fake) WebhookCreate(channelID, name, avatar string, _ ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isDenied(channelID, OpWebhookCreate) {
		return nil, errForbidden()
	}
	return &discordgo.Webhook{ID: "wh-" + channelID, Token: "token-" + channelID, ChannelID: channelID}, nil
}

func (f *Fake) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WebhookMessages[webhookID] = append(f.WebhookMessages[webhookID], data)
	return &discordgo.Message{}, nil
}
