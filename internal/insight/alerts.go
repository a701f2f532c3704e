package insight

import "github.com/abralabs/abra/pkg/models"

// alerts raises a spike or drop alert for every channel whose
// month-over-month change crosses the configured thresholds. Channels
// without change stats stay silent.
func alerts(analytics map[models.Channel]*ChannelAnalytics, fopts FusionOptions) []models.Alert {
	out := []models.Alert{}
	for _, ch := range sortedChannels(analytics) {
		c := analytics[ch].Changes
		if c == nil {
			continue
		}
		switch {
		case c.MonthChange >= fopts.SpikeAlertPct:
			out = append(out, models.Alert{Channel: ch, Kind: models.AlertSpike, ChangePct: c.MonthChange})
		case c.MonthChange <= fopts.DropAlertPct:
			out = append(out, models.Alert{Channel: ch, Kind: models.AlertDrop, ChangePct: c.MonthChange})
		}
	}
	return out
}
