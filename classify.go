package crier

// kind tags every emitted record with its message class.
type kind int

const (
	kindMessage kind = iota
	kindProgress
	kindProgressPermanent
	kindBarTick
	kindVerbose
	kindDebug
	kindTrace
	kindCapturedInfo
	kindCapturedDebug
	kindError
)

// behavior is the classification result for one (kind, mode) pair.
type behavior struct {
	show        bool // record reaches the screen
	transient   bool // screen line may be overwritten by later output
	timestamped bool // screen line carries a timestamp prefix
	logged      bool // record is appended to the log file
}

// classify is the decision table mapping message kind and current mode
// to screen/log behavior. It is total over all kinds and modes; unknown
// combinations degrade to logged-but-hidden.
func classify(k kind, m Mode) behavior {
	switch k {
	case kindMessage:
		return behavior{show: m >= Brief, logged: true}
	case kindProgress:
		return behavior{
			show:        m >= Brief,
			transient:   m == Brief,
			timestamped: m >= Debug,
			logged:      true,
		}
	case kindProgressPermanent:
		return behavior{
			show:        m >= Brief,
			timestamped: m >= Debug,
			logged:      true,
		}
	case kindBarTick:
		// Intermediate bar ticks never reach the log; the bar's label
		// line is logged separately when the bar is opened.
		return behavior{
			show:        m >= Brief,
			transient:   m == Brief,
			timestamped: m >= Debug,
		}
	case kindVerbose:
		return behavior{
			show:        m >= Verbose,
			timestamped: m >= Debug,
			logged:      true,
		}
	case kindDebug:
		return behavior{
			show:        m >= Debug,
			timestamped: true,
			logged:      true,
		}
	case kindTrace:
		// Trace is only persisted when the user asked for everything,
		// otherwise it would bloat every run's log.
		return behavior{
			show:        m >= Trace,
			timestamped: true,
			logged:      m >= Trace,
		}
	case kindCapturedInfo:
		return behavior{
			show:        m >= Verbose,
			timestamped: m >= Debug,
			logged:      true,
		}
	case kindCapturedDebug:
		return behavior{
			show:        m >= Debug,
			timestamped: true,
			logged:      true,
		}
	case kindError:
		return behavior{show: true, timestamped: m >= Debug, logged: true}
	default:
		return behavior{logged: true}
	}
}
