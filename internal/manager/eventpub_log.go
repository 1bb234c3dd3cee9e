package manager

import "github.com/rs/zerolog"

// LogPublisher writes every event to a zerolog logger. Download errors are
// logged at warn level, everything else at info.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Info()
	if e.Name == EventDownloadError {
		ev = p.Logger.Warn()
	}
	if e.Bundle != "" {
		ev = ev.Str("bundle", e.Bundle)
	}
	ev.Fields(e.Fields).Msg(e.Name)
}
