package protocol

// Event is a button edge sent by a client.
type Event struct {
	ID    EventID
	State EventState
}

// Axis carries an analog value for an event, e.g. mouse look.
type Axis struct {
	ID    EventID
	Value float32
}

// UserUpdates is the REQ_USER_UPDATES payload:
//
//	[2 bytes: event count] ([1 byte: id] [1 byte: state])*
//	[2 bytes: axis count]  ([1 byte: id] [4 bytes: float32])*
type UserUpdates struct {
	Events []Event
	Axes   []Axis
}

func (u UserUpdates) Empty() bool {
	return len(u.Events) == 0 && len(u.Axes) == 0
}

// NewUserUpdatesPacket builds a REQ_USER_UPDATES packet.
func NewUserUpdatesPacket(u UserUpdates) *Packet {
	p := NewPacket(ReqUserUpdates).WithPriority(PriorityHigh)
	p.WriteUint16(uint16(len(u.Events)))
	for _, e := range u.Events {
		p.WriteUint8(uint8(e.ID)).WriteUint8(uint8(e.State))
	}
	p.WriteUint16(uint16(len(u.Axes)))
	for _, a := range u.Axes {
		p.WriteUint8(uint8(a.ID)).WriteFloat32(a.Value)
	}
	return p
}

// ReadUserUpdates decodes the payload. Counts that overrun the payload are
// reported as ErrTruncatedPacket.
func ReadUserUpdates(r *Reader) (UserUpdates, error) {
	var u UserUpdates

	count, err := r.ReadUint16()
	if err != nil {
		return u, err
	}
	if int(count)*2 > r.Remaining() {
		return u, ErrTruncatedPacket
	}
	u.Events = make([]Event, 0, count)
	for i := 0; i < int(count); i++ {
		id, _ := r.ReadUint8()
		state, _ := r.ReadUint8()
		u.Events = append(u.Events, Event{ID: EventID(id), State: EventState(state)})
	}

	count, err = r.ReadUint16()
	if err != nil {
		return u, err
	}
	if int(count)*5 > r.Remaining() {
		return u, ErrTruncatedPacket
	}
	u.Axes = make([]Axis, 0, count)
	for i := 0; i < int(count); i++ {
		id, _ := r.ReadUint8()
		value, _ := r.ReadFloat32()
		u.Axes = append(u.Axes, Axis{ID: EventID(id), Value: value})
	}

	return u, nil
}
