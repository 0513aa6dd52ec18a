// Package notify posts household bill summaries to a Discord channel when a
// cycle is finalized. The whole package is optional; a nil *Notifier is a
// silent no-op.
package notify

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"dispensa/internal/billing"
	"dispensa/internal/core"
)

type Notifier struct {
	session   *discordgo.Session
	channelID string
}

func New(botToken, channelID string) (*Notifier, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &Notifier{
		session:   session,
		channelID: channelID,
	}, nil
}

// CycleFinalized posts the bill summary for a just-closed cycle.
func (n *Notifier) CycleFinalized(cycle core.Cycle, bill billing.Bill) error {
	if n == nil {
		return nil
	}
	if _, err := n.session.ChannelMessageSend(n.channelID, FormatBill(cycle, bill)); err != nil {
		return fmt.Errorf("send Discord message: %w", err)
	}
	return nil
}

// FormatBill renders the per-person breakdown as a Discord message.
func FormatBill(cycle core.Cycle, bill billing.Bill) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s closed**: total %s across %d dinners\n\n", cycle.Label, bill.Total.StringFixed(2), bill.TotalWeight)

	for _, row := range bill.Rows {
		if row.Credit() {
			fmt.Fprintf(&b, "• **%s** (%d dinners, %s%%): owed %s, paid %s, **credited %s**\n",
				row.PersonName, row.Weight, row.SharePercent.StringFixed(2),
				row.Owed.StringFixed(2), row.Paid.StringFixed(2), row.Balance.Neg().StringFixed(2))
			continue
		}
		fmt.Fprintf(&b, "• **%s** (%d dinners, %s%%): owed %s, paid %s, **owes %s**\n",
			row.PersonName, row.Weight, row.SharePercent.StringFixed(2),
			row.Owed.StringFixed(2), row.Paid.StringFixed(2), row.Balance.StringFixed(2))
	}

	if len(bill.Rows) == 0 {
		b.WriteString("No consumption entries recorded.\n")
	}
	return b.String()
}

func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.session.Close()
}
