package intent

import (
	"fmt"

	"stove_coordination/internal/pause"
)

type phrases struct {
	single map[pause.ChangeType]string
	multi  map[pause.ChangeType]string
}

var catalog = map[string]phrases{
	"en": {
		single: map[pause.ChangeType]string{
			pause.ChangeSetpoint: "Temperature changed manually in %s",
			pause.ChangeMode:     "Mode changed manually in %s",
			pause.ChangeBoth:     "Temperature and mode changed manually in %s",
		},
		multi: map[pause.ChangeType]string{
			pause.ChangeSetpoint: "Temperature changed manually in %d rooms",
			pause.ChangeMode:     "Mode changed manually in %d rooms",
			pause.ChangeBoth:     "Temperature and mode changed manually in %d rooms",
		},
	},
	"it": {
		single: map[pause.ChangeType]string{
			pause.ChangeSetpoint: "Temperatura modificata manualmente in %s",
			pause.ChangeMode:     "Modalità cambiata manualmente in %s",
			pause.ChangeBoth:     "Temperatura e modalità modificate manualmente in %s",
		},
		multi: map[pause.ChangeType]string{
			pause.ChangeSetpoint: "Temperatura modificata manualmente in %d stanze",
			pause.ChangeMode:     "Modalità cambiata manualmente in %d stanze",
			pause.ChangeBoth:     "Temperatura e modalità modificate manualmente in %d stanze",
		},
	},
}

func reason(lang string, r Result) string {
	p, ok := catalog[lang]
	if !ok {
		p = catalog["en"]
	}
	kind := r.Kind()

	rooms := make(map[string]struct{})
	for _, c := range r.Changes {
		rooms[c.RoomID] = struct{}{}
	}
	if len(rooms) == 1 {
		return fmt.Sprintf(p.single[kind], r.Changes[0].RoomName)
	}
	return fmt.Sprintf(p.multi[kind], len(rooms))
}
