package saga

// TraceSink receives the engine's trace feed. Implementations must not
// block: the engine calls these inline on the run goroutine.
type TraceSink interface {
	Event(runID string, ev Event)
	Message(runID string, msg Message)
	RunFinished(state *RunState)
}

type nopTraceSink struct{}

func (nopTraceSink) Event(string, Event)     {}
func (nopTraceSink) Message(string, Message) {}
func (nopTraceSink) RunFinished(*RunState)   {}
