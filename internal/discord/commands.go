package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/dyluth/ctfboard/internal/router"
)

func stringOpt(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func userOpt(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

func ctfIDOpt() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "ctfid",
		Description: "CTFNote id of the CTF, defaults to the one running now",
	}
}

func categoryChannelOpt(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "category",
		Description:  description,
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
	}
}

// Commands returns the slash command definitions for the guild. categories
// become the choices of /chal.
func Commands(categories []string) []*discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(categories))
	for _, c := range categories {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
	}

	category := stringOpt("category", "Category of the challenge", true)
	category.Choices = choices

	return []*discordgo.ApplicationCommand{
		{
			Name:        router.CmdStart,
			Description: "Start a new CTF",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "ctf_type",
				Description: "Kind of competition",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Jeopardy", Value: "Jeopardy"},
					{Name: "Attack-Defense", Value: "AD"},
				},
			}},
		},
		{
			Name:        router.CmdChal,
			Description: "Add a challenge and create its channel",
			Options: []*discordgo.ApplicationCommandOption{
				category,
				stringOpt("challenge", "Name of the challenge", true),
				ctfIDOpt(),
			},
		},
		{
			Name:        router.CmdSolved,
			Description: "Mark this channel's challenge as solved",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("flag", "The flag", true)},
		},
		{
			Name:        router.CmdVuln,
			Description: "Record a vulnerability in this service",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("vuln_name", "Name of the vulnerability", true)},
		},
		{
			Name:        router.CmdPatch,
			Description: "Mark a vulnerability as patched",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("vuln_name", "Name of the vulnerability", true)},
		},
		{
			Name:        router.CmdExploit,
			Description: "Mark a vulnerability as exploited",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("vuln_name", "Name of the vulnerability", true)},
		},
		{
			Name:        router.CmdAssign,
			Description: "Assign a player to this channel's challenge",
			Options:     []*discordgo.ApplicationCommandOption{userOpt("playername", "Player to assign")},
		},
		{
			Name:        router.CmdUnassign,
			Description: "Remove a player from this channel's challenge",
			Options:     []*discordgo.ApplicationCommandOption{userOpt("playername", "Player to remove")},
		},
		{
			Name:        router.CmdArchive,
			Description: "Archive every challenge channel and clear the board",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("name", "Name of the archive category", true)},
		},
		{
			Name:        router.CmdExport,
			Description: "Export the transcript of a category",
			Options:     []*discordgo.ApplicationCommandOption{categoryChannelOpt("Category to export")},
		},
		{
			Name:        router.CmdNuke,
			Description: "Delete a category and all of its channels",
			Options: []*discordgo.ApplicationCommandOption{
				categoryChannelOpt("Category to delete"),
				stringOpt("confirm", "Confirmation code", false),
			},
		},
		{
			Name:        router.CmdNoteFixup,
			Description: "Link this channel to its CTFNote task",
			Options:     []*discordgo.ApplicationCommandOption{ctfIDOpt()},
		},
		{
			Name:        router.CmdNoteAuth,
			Description: "Change the CTFNote endpoint and admin credentials",
			Options: []*discordgo.ApplicationCommandOption{
				stringOpt("url", "CTFNote base URL", true),
				stringOpt("adminlogin", "Admin login", true),
				stringOpt("adminpass", "Admin password", true),
			},
		},
		{
			Name:        router.CmdNoteAssignLead,
			Description: "Make a player lead of this channel's task",
			Options:     []*discordgo.ApplicationCommandOption{userOpt("playername", "Player to lead")},
		},
		{
			Name:        router.CmdNoteRegister,
			Description: "Create a CTFNote account for yourself",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("password", "Password, generated when empty", false)},
		},
		{
			Name:        router.CmdNoteWhoLeads,
			Description: "Show who leads this channel's task",
		},
		{
			Name:        router.CmdNoteImport,
			Description: "Import a CTF from CTFtime",
			Options:     []*discordgo.ApplicationCommandOption{stringOpt("link", "CTFtime event link or id", true)},
		},
		{
			Name:        router.CmdStats,
			Description: "Show server and board statistics",
		},
		{
			Name:        router.CmdPing,
			Description: "Check the bot is alive",
		},
	}
}
