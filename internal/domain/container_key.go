package domain

// ContainerKey identifies a drop target: one calendar day or the inbox.
type ContainerKey struct {
	date  Date
	inbox bool
}

// DayKey returns the key for one calendar day.
func DayKey(d Date) ContainerKey {
	return ContainerKey{date: d}
}

// InboxKey returns the key for the inbox.
func InboxKey() ContainerKey {
	return ContainerKey{inbox: true}
}

// ContainerFor returns the container a due date belongs to.
func ContainerFor(due *Date) ContainerKey {
	if due == nil || due.IsZero() {
		return InboxKey()
	}
	return DayKey(*due)
}

func (k ContainerKey) IsInbox() bool { return k.inbox }

// IsZero reports whether k names no container.
func (k ContainerKey) IsZero() bool {
	return !k.inbox && k.date.IsZero()
}

// Date returns the day of a day key.
func (k ContainerKey) Date() (Date, bool) {
	if k.inbox || k.date.IsZero() {
		return Date{}, false
	}
	return k.date, true
}

// DueDate returns the due date a task takes when dropped into k; nil for the inbox.
func (k ContainerKey) DueDate() *Date {
	d, ok := k.Date()
	if !ok {
		return nil
	}
	return &d
}

func (k ContainerKey) String() string {
	if k.inbox {
		return "inbox"
	}
	return k.date.String()
}
