package telemetry

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// quiet lists logger names whose entries never reach the stream: publishing
// a line goes through them, so forwarding would loop.
var quiet = []string{"pubsub", "telemetry"}

// Core returns a zapcore.Core that copies enabled entries into the backend
// stream. Tee it with the process core.
func (s *Stream) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &core{LevelEnabler: enab, stream: s}
}

type core struct {
	zapcore.LevelEnabler
	stream *Stream
	fields []zapcore.Field
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	return &core{
		LevelEnabler: c.LevelEnabler,
		stream:       c.stream,
		fields:       append(c.fields[:len(c.fields):len(c.fields)], fields...),
	}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) || isQuiet(ent.LoggerName) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	l := Line{
		Level:     ent.Level.String(),
		Message:   ent.Message,
		Logger:    ent.LoggerName,
		Timestamp: ent.Time.UTC(),
	}
	if len(enc.Fields) > 0 {
		l.Fields = enc.Fields
	}
	c.stream.Backend(l)
	return nil
}

func (c *core) Sync() error { return nil }

func isQuiet(name string) bool {
	for _, q := range quiet {
		if name == q || strings.HasPrefix(name, q+".") {
			return true
		}
	}
	return false
}
