package message

// Log is the ordered, append-only record of one run. It is owned by a single
// executor goroutine and is not safe for concurrent mutation.
type Log struct {
	messages []Message
}

// NewLog returns a log seeded with initial messages.
func NewLog(initial ...Message) (*Log, error) {
	l := &Log{}
	if err := l.Append(initial...); err != nil {
		return nil, err
	}
	return l, nil
}

// Append validates msgs and adds them to the end of the log. Either all
// messages are appended or none are.
func (l *Log) Append(msgs ...Message) error {
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return err
		}
	}
	for _, msg := range msgs {
		l.messages = append(l.messages, msg.Clone())
	}
	return nil
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// Last returns the most recently appended message.
func (l *Log) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1].Clone(), true
}

// Messages returns a copy of every message in append order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	for i, msg := range l.messages {
		out[i] = msg.Clone()
	}
	return out
}

// Effective returns the history as the model should see it: when several
// messages share an ID only the most recent one is kept.
func (l *Log) Effective() []Message {
	lastIndex := make(map[string]int, len(l.messages))
	for i, msg := range l.messages {
		lastIndex[msg.ID] = i
	}
	out := make([]Message, 0, len(lastIndex))
	for i, msg := range l.messages {
		if lastIndex[msg.ID] == i {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// Texts returns the content of every message in order.
func (l *Log) Texts() []string {
	out := make([]string, len(l.messages))
	for i, msg := range l.messages {
		out[i] = msg.Content
	}
	return out
}

// FinalText returns the last non-empty content in the log.
func (l *Log) FinalText() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Content != "" {
			return l.messages[i].Content
		}
	}
	return ""
}
