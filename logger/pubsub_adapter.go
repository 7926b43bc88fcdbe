package logger

// PubSubAdapter exposes a Logger through the printf-style method set used by
// github.com/juju/pubsub hubs.
type PubSubAdapter struct {
	Logger Logger
}

func (p PubSubAdapter) Errorf(format string, args ...any)   { p.Logger.Errorf(format, args...) }
func (p PubSubAdapter) Warningf(format string, args ...any) { p.Logger.Warnf(format, args...) }
func (p PubSubAdapter) Infof(format string, args ...any)    { p.Logger.Infof(format, args...) }
func (p PubSubAdapter) Debugf(format string, args ...any)   { p.Logger.Debugf(format, args...) }
func (p PubSubAdapter) Tracef(format string, args ...any)   { p.Logger.Tracef(format, args...) }
