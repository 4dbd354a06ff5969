package domain

// Step is a macro-step descriptor inside a phase, e.g. "select responders"
// or "tally votes".
type Step string

const (
	StepIntroductions    Step = "introductions"
	StepSelectResponders Step = "select_responders"
	StepCollectReplies   Step = "collect_replies"
	StepCollectVotes     Step = "collect_votes"
	StepTallyVotes       Step = "tally_votes"
	StepCollectAction    Step = "collect_action"
	StepResolveNight     Step = "resolve_night"
	StepAnnounceEnding   Step = "announce_ending"
)

// StepQueue is an ordered list of macro-steps with an explicit head pointer.
// The pointer makes "has this item been processed" a field check instead of
// an array diff, which matters for crash/resume.
type StepQueue struct {
	Items []Step `json:"items"`
	Head  int    `json:"head"`
}

// NewStepQueue builds a queue positioned at its first item.
func NewStepQueue(items ...Step) StepQueue {
	return StepQueue{Items: items}
}

// Current returns the head step, or false when the queue is exhausted.
func (q *StepQueue) Current() (Step, bool) {
	if q.Head >= len(q.Items) {
		return "", false
	}
	return q.Items[q.Head], true
}

// Advance moves past the head step.
func (q *StepQueue) Advance() {
	if q.Head < len(q.Items) {
		q.Head++
	}
}

// Empty reports whether every step has been processed.
func (q *StepQueue) Empty() bool {
	return q.Head >= len(q.Items)
}

// ActorItem is one pending turn in the current macro-step. Done marks the
// item as processed so a crashed step can resume without re-running it.
type ActorItem struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// ActorQueue is the ordered list of actors still owed a turn in the current
// macro-step.
type ActorQueue struct {
	Items []ActorItem `json:"items"`
}

// NewActorQueue builds a queue over the given actor names, in order.
func NewActorQueue(names ...string) ActorQueue {
	q := ActorQueue{}
	for _, n := range names {
		q.Items = append(q.Items, ActorItem{Name: n})
	}
	return q
}

// Current returns the first unprocessed actor, or false when none remain.
func (q *ActorQueue) Current() (string, bool) {
	for _, it := range q.Items {
		if !it.Done {
			return it.Name, true
		}
	}
	return "", false
}

// Pending returns all unprocessed actor names in queue order. The engine
// dispatches these concurrently but appends results in this order.
func (q *ActorQueue) Pending() []string {
	var names []string
	for _, it := range q.Items {
		if !it.Done {
			names = append(names, it.Name)
		}
	}
	return names
}

// MarkDone flags the named actor's turn as processed.
func (q *ActorQueue) MarkDone(name string) {
	for i := range q.Items {
		if q.Items[i].Name == name && !q.Items[i].Done {
			q.Items[i].Done = true
			return
		}
	}
}

// Done reports whether the named actor's turn has already been processed.
func (q *ActorQueue) Done(name string) bool {
	for _, it := range q.Items {
		if it.Name == name {
			return it.Done
		}
	}
	return false
}

// Empty reports whether no unprocessed actors remain.
func (q *ActorQueue) Empty() bool {
	_, ok := q.Current()
	return !ok
}

// Clear drops all items from both perspectives (used by reset).
func (q *ActorQueue) Clear() {
	q.Items = nil
}
