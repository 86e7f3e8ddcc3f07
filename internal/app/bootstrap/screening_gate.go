package bootstrap

import (
	"context"

	screeningapplication "baton/contexts/media-safety/screening-service/application"
	screeningports "baton/contexts/media-safety/screening-service/ports"
	relayports "baton/contexts/relay-core/relay-service/ports"
)

// screeningGate lets the relay consult the screening service in-process. Both
// contexts keep their own port types; only the composition root sees both.
type screeningGate struct {
	service screeningapplication.Service
}

func (g screeningGate) Screen(ctx context.Context, media *relayports.MediaCheck, text string) (relayports.ScreenVerdict, error) {
	input := screeningapplication.ScreenInput{Text: text}
	if media != nil {
		input.Media = &screeningports.Media{
			Data:        media.Data,
			ContentType: media.ContentType,
		}
	}

	verdict, err := g.service.Screen(ctx, input)
	return relayports.ScreenVerdict{
		Safe:   verdict.Safe,
		Reason: verdict.Reason,
		Flags:  verdict.Flags,
	}, err
}

var _ relayports.ContentScreener = screeningGate{}
