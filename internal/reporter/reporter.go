// Package reporter prints the end-of-run summary table of all bots.
package reporter

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"volume-bot-go/internal/models"
	"volume-bot-go/internal/store"
)

// PrintSummary renders one row per bot with its volume progress and order
// counters. Called on shutdown.
func PrintSummary(repo store.Repository) error {
	bots, err := repo.ListBots()
	if err != nil {
		return fmt.Errorf("listing bots for summary: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Volume Bot Summary")
	t.AppendHeader(table.Row{"ID", "Name", "Exchange", "Symbol", "Status", "Completed", "Remaining", "Orders", "OK", "Last Error"})

	var totalCompleted float64
	var totalOrders, totalOK int
	for _, bot := range bots {
		t.AppendRow(table.Row{
			shortID(bot.ID),
			bot.Name,
			bot.Exchange,
			bot.Symbol,
			colorStatus(bot.Status),
			fmt.Sprintf("%.6g", bot.CompletedVolume),
			fmt.Sprintf("%.6g", bot.RemainingVolume),
			bot.TotalOrders,
			bot.SuccessfulOrders,
			truncateMsg(bot.ErrorMessage, 40),
		})
		totalCompleted += bot.CompletedVolume
		totalOrders += bot.TotalOrders
		totalOK += bot.SuccessfulOrders
	}
	t.AppendFooter(table.Row{"", "", "", "", "total", fmt.Sprintf("%.6g", totalCompleted), "", totalOrders, totalOK, ""})

	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

func colorStatus(status models.BotStatus) string {
	switch status {
	case models.StatusRunning:
		return text.FgGreen.Sprint(status)
	case models.StatusError:
		return text.FgRed.Sprint(status)
	case models.StatusCompleted:
		return text.FgCyan.Sprint(status)
	default:
		return string(status)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateMsg shortens a message to max runes. Error messages can carry
// multibyte text, so slicing happens on runes, not bytes.
func truncateMsg(msg string, max int) string {
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-1]) + "…"
}
