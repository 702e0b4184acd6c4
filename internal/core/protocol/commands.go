package protocol

import "fmt"

// CommandID is the version independent command identifier used inside the
// process. V1 and V2 put it on the wire unchanged; V0 uses its own table.
type CommandID uint16

const (
	ReqConnect CommandID = iota
	RepConnect
	ReqDisconnect
	RepDisconnect
	ReqHeartbeat
	RepHeartbeat
	ReqLogin
	RepLogin
	ReqLogout
	RepLogout
	ReqRegister
	RepRegister
	ReqEntitySpawn
	RepEntitySpawn
	ReqEntityUpdate
	RepEntityUpdate
	ReqEntityDestroy
	RepEntityDestroy
	ReqEntityMoved
	RepEntityMoved
	ReqEntityShoot
	RepEntityShoot
	ReqUserUpdates
	RepUserUpdates
	ReqCreateRoom
	RepCreateRoom
	ReqJoinRoom
	RepJoinRoom
	ReqLeaveRoom
	RepLeaveRoom
	ReqStartGame
	RepStartGame
	ReqEndGame
	RepEndGame

	commandCount
)

// Legacy commands exist only in V0.
const (
	ReqPing CommandID = 0x8000 + iota
	RepPing
	ReqPong
	RepPong
)

var commandNames = [...]string{
	ReqConnect:       "REQ_CONNECT",
	RepConnect:       "REP_CONNECT",
	ReqDisconnect:    "REQ_DISCONNECT",
	RepDisconnect:    "REP_DISCONNECT",
	ReqHeartbeat:     "REQ_HEARTBEAT",
	RepHeartbeat:     "REP_HEARTBEAT",
	ReqLogin:         "REQ_LOGIN",
	RepLogin:         "REP_LOGIN",
	ReqLogout:        "REQ_LOGOUT",
	RepLogout:        "REP_LOGOUT",
	ReqRegister:      "REQ_REGISTER",
	RepRegister:      "REP_REGISTER",
	ReqEntitySpawn:   "REQ_ENTITY_SPAWN",
	RepEntitySpawn:   "REP_ENTITY_SPAWN",
	ReqEntityUpdate:  "REQ_ENTITY_UPDATE",
	RepEntityUpdate:  "REP_ENTITY_UPDATE",
	ReqEntityDestroy: "REQ_ENTITY_DESTROY",
	RepEntityDestroy: "REP_ENTITY_DESTROY",
	ReqEntityMoved:   "REQ_ENTITY_MOVED",
	RepEntityMoved:   "REP_ENTITY_MOVED",
	ReqEntityShoot:   "REQ_ENTITY_SHOOT",
	RepEntityShoot:   "REP_ENTITY_SHOOT",
	ReqUserUpdates:   "REQ_USER_UPDATES",
	RepUserUpdates:   "REP_USER_UPDATES",
	ReqCreateRoom:    "REQ_CREATE_ROOM",
	RepCreateRoom:    "REP_CREATE_ROOM",
	ReqJoinRoom:      "REQ_JOIN_ROOM",
	RepJoinRoom:      "REP_JOIN_ROOM",
	ReqLeaveRoom:     "REQ_LEAVE_ROOM",
	RepLeaveRoom:     "REP_LEAVE_ROOM",
	ReqStartGame:     "REQ_START_GAME",
	RepStartGame:     "REP_START_GAME",
	ReqEndGame:       "REQ_END_GAME",
	RepEndGame:       "REP_END_GAME",
}

// v0Commands maps V0 wire ids to commands. PING/PONG sit right after
// DISCONNECT and push everything else four slots down.
var v0Commands = func() []CommandID {
	table := []CommandID{ReqConnect, RepConnect, ReqDisconnect, RepDisconnect, ReqPing, RepPing, ReqPong, RepPong}
	for c := ReqHeartbeat; c < commandCount; c++ {
		table = append(table, c)
	}
	return table
}()

var v0Wire = func() map[CommandID]uint16 {
	m := make(map[CommandID]uint16, len(v0Commands))
	for wire, c := range v0Commands {
		m[c] = uint16(wire)
	}
	return m
}()

// CanonicalCommand resolves a wire id under the given version. V1 and V2
// accept any id so that newer commands can be skipped by the dispatcher.
func CanonicalCommand(v Version, wire uint16) (CommandID, error) {
	switch v {
	case V0:
		if int(wire) >= len(v0Commands) {
			return 0, ErrUnknownCommand
		}
		return v0Commands[wire], nil
	case V1, V2:
		return CommandID(wire), nil
	default:
		return 0, ErrUnknownVersion
	}
}

// Wire returns the id used on the wire for version v.
func (c CommandID) Wire(v Version) (uint16, error) {
	switch v {
	case V0:
		wire, ok := v0Wire[c]
		if !ok {
			return 0, ErrUnknownCommand
		}
		return wire, nil
	case V1, V2:
		if c >= commandCount {
			return 0, ErrUnknownCommand
		}
		return uint16(c), nil
	default:
		return 0, ErrUnknownVersion
	}
}

// Known reports whether c has a meaning in version v.
func (c CommandID) Known(v Version) bool {
	_, err := c.Wire(v)
	return err == nil
}

func (c CommandID) String() string {
	switch c {
	case ReqPing:
		return "REQ_PING"
	case RepPing:
		return "REP_PING"
	case ReqPong:
		return "REQ_PONG"
	case RepPong:
		return "REP_PONG"
	}
	if c < commandCount {
		return commandNames[c]
	}
	return fmt.Sprintf("COMMAND(%d)", uint16(c))
}

// Reply returns the REP_ counterpart of a REQ_ command.
func (c CommandID) Reply() CommandID {
	switch c {
	case ReqPing, ReqPong:
		return c + 1
	}
	if c < commandCount && c%2 == 0 {
		return c + 1
	}
	return c
}

// EventID identifies a player input.
type EventID uint8

const (
	EventMoveUp EventID = iota
	EventMoveDown
	EventMoveLeft
	EventMoveRight
	EventMoveFront
	EventMoveBack
	EventLookUp
	EventLookDown
	EventLookLeft
	EventLookRight
	EventShoot

	eventCount
)

func (e EventID) Valid() bool {
	return e < eventCount
}

// EventState is the edge of a button event.
type EventState uint8

const (
	EventPressed EventState = iota
	EventReleased
)
