package globalactions

import (
	"fmt"
	"runtime"
	"time"

	"guardnet/model"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	colorAction  = 0xED4245 // red
	colorReverse = 0x57F287 // green
	colorInfo    = 0x5865F2 // blurple
)

func actionEmbed(action model.Action, target *discordgo.User, caseID int64, result ActionResult, expires *time.Time) *discordgo.MessageEmbed {
	color := colorAction
	if result != Applied {
		color = colorInfo
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Cross-guild %s", action),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (%s)", target.Username, target.ID), Inline: true},
			{Name: "Case", Value: fmt.Sprintf("#%d", caseID), Inline: true},
			{Name: "Outcome", Value: result.String(), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if expires != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Expires", Value: expires.UTC().Format(time.RFC1123), Inline: true,
		})
	}
	return embed
}

func appealEmbed(appeal model.AppealAction, targetID string, caseID int64, result ActionResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Cross-guild %s", appeal),
		Color: colorReverse,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: targetID, Inline: true},
			{Name: "Case", Value: fmt.Sprintf("#%d", caseID), Inline: true},
			{Name: "Outcome", Value: result.String(), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func expiryEmbed(action model.Action, targetID string, caseID int64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s expired", action),
		Color: colorReverse,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: targetID, Inline: true},
			{Name: "Case", Value: fmt.Sprintf("#%d", caseID), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func rejoinEmbed(action model.Action, targetID string, caseID int64) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Reapplied %s on rejoin", action),
		Color: colorAction,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: targetID, Inline: true},
			{Name: "Case", Value: fmt.Sprintf("#%d", caseID), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// dmText is the message sent to the target after fan-out. The wording
// depends on how severe the action was.
func dmText(action model.Action, category, subcategory, reason string, caseID int64, expires *time.Time) string {
	switch action {
	case model.ActionNone:
		return fmt.Sprintf("A report against you (case #%d, %s/%s) was reviewed and closed with no action. Reason given: %s", caseID, category, subcategory, reason)
	case model.ActionWarn:
		return fmt.Sprintf("You received a network-wide warning (case #%d, %s/%s). Reason: %s. Further reports may lead to sanctions.", caseID, category, subcategory, reason)
	default:
		text := fmt.Sprintf("A network-wide %s was applied to you (case #%d, %s/%s). Reason: %s.", action, caseID, category, subcategory, reason)
		if expires != nil {
			text += fmt.Sprintf(" It expires %s.", expires.UTC().Format(time.RFC1123))
		}
		return text
	}
}

// statsEmbed is the administrative notice sent after a fan-out, with
// runtime fields so operators can spot a struggling host at a glance.
func statsEmbed(title string, caseID int64, stats model.SanctionStats, dmDelivered bool) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Case", Value: fmt.Sprintf("#%d", caseID), Inline: true},
		{Name: "Success", Value: fmt.Sprintf("%d", stats.Success), Inline: true},
		{Name: "Failure", Value: fmt.Sprintf("%d", stats.Failure), Inline: true},
		{Name: "Total", Value: fmt.Sprintf("%d", stats.Total), Inline: true},
		{Name: "DM delivered", Value: fmt.Sprintf("%t", dmDelivered), Inline: true},
		{Name: "Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Memory", Value: fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024), Inline: true,
		})
	}
	if info, err := host.Info(); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Host", Value: fmt.Sprintf("%s (%s %s)", info.Hostname, info.Platform, info.PlatformVersion), Inline: true,
		})
	}
	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     colorInfo,
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
