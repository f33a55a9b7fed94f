package reconcile

// OutcomeNotifier is told how a session ended. Sessions call Notify at most
// once, after any wallet sync.
type OutcomeNotifier interface {
	Notify(Result)
}

// NotifierFunc adapts a function to OutcomeNotifier.
type NotifierFunc func(Result)

func (f NotifierFunc) Notify(r Result) { f(r) }

// Notifiers fans a result out to several notifiers in order.
type Notifiers []OutcomeNotifier

func (ns Notifiers) Notify(r Result) {
	for _, n := range ns {
		n.Notify(r)
	}
}
