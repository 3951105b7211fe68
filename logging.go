package evloop

import (
	"os"
	"sync"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured-logging facade used throughout the loop.
//
// It wraps logiface.Logger[logiface.Event] so the loop can be wired into
// whatever backend the owning SIP stack already uses (zerolog, logrus,
// stumpy, ...) without this package depending on a concrete one beyond the
// zero-configuration default.
type Logger = *logiface.Logger[logiface.Event]

var (
	packageLoggerOnce sync.Once
	packageLoggerInst Logger
)

// defaultLogger returns a Logger writing structured events to stderr via the
// zerolog backend, at trace level (so WithLevel filtering happens at the
// call site, same as the facade's own test harness does it).
func defaultLogger() Logger {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(izerolog.L.LevelTrace()),
	).Logger()
}

// packageLogger returns a process-wide default Logger, built once, for call
// sites that have no Loop (and therefore no configured Logger) to hand,
// such as Source.Destroy's fatal path (§7 case 1) on a free-standing source.
func packageLogger() Logger {
	packageLoggerOnce.Do(func() {
		packageLoggerInst = defaultLogger()
	})
	return packageLoggerInst
}

// logFatal logs a structured diagnostic at the facade's panic level and
// panics, matching belle_sip_fatal's "log then abort" contract (§7 case 1:
// programming errors have no recovery path).
func logFatal(log Logger, msg string, kv ...any) {
	b := log.Panic()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Any(key, kv[i+1])
	}
	b.Log(msg)
	// logiface.Logger.Panic always panics once the event is written; this is
	// reached only if the logger was misconfigured to not panic.
	panic(msg)
}

// logPollError logs an unexpected poll failure at error level (§7 case 3).
func logPollError(log Logger, err error) {
	log.Err().Err(err).Log("evloop: poll failed, abandoning iteration")
}
