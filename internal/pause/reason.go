package pause

import (
	"fmt"
	"time"
)

// ChangeType summarises what the user changed by hand.
type ChangeType string

const (
	ChangeSetpoint ChangeType = "setpoint"
	ChangeMode     ChangeType = "mode"
	ChangeBoth     ChangeType = "both"
	ChangeOther    ChangeType = "other"
)

var reasons = map[string]map[ChangeType]string{
	"en": {
		ChangeSetpoint: "Manual temperature change detected. Automation paused until %s",
		ChangeMode:     "Manual mode change detected. Automation paused until %s",
		ChangeBoth:     "Manual temperature and mode change detected. Automation paused until %s",
		ChangeOther:    "Manual change detected. Automation paused until %s",
	},
	"it": {
		ChangeSetpoint: "Rilevata modifica manuale della temperatura. Automazione in pausa fino alle %s",
		ChangeMode:     "Rilevato cambio manuale di modalità. Automazione in pausa fino alle %s",
		ChangeBoth:     "Rilevata modifica manuale di temperatura e modalità. Automazione in pausa fino alle %s",
		ChangeOther:    "Rilevata modifica manuale. Automazione in pausa fino alle %s",
	},
}

// FormatPauseReason renders the status line shown while paused. Unknown
// languages fall back to English, unknown change types to ChangeOther and a
// nil loc to UTC.
func FormatPauseReason(change ChangeType, pauseUntil time.Time, loc *time.Location, lang string) string {
	if loc == nil {
		loc = time.UTC
	}
	table, ok := reasons[lang]
	if !ok {
		table = reasons["en"]
	}
	format, ok := table[change]
	if !ok {
		format = table[ChangeOther]
	}
	return fmt.Sprintf(format, pauseUntil.In(loc).Format("15:04"))
}
