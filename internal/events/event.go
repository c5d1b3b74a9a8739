package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// Kind 网关事件类型
type Kind string

const (
	KindStarted     Kind = "started"
	KindStopped     Kind = "stopped"
	KindConnect     Kind = "connect"
	KindPosition    Kind = "position"
	KindDisconnect  Kind = "disconnect"
	KindError       Kind = "error"
	KindCommandSent Kind = "command_sent"
)

// Event 会话层对外发布的事件。Position/Command/Error 按 Kind 选填。
type Event struct {
	ID         string              `json:"id"`
	Kind       Kind                `json:"kind"`
	Time       time.Time           `json:"time"`
	Instance   string              `json:"instance,omitempty"`
	Listen     string              `json:"listen,omitempty"`
	ConnID     string              `json:"conn_id,omitempty"`
	RemoteAddr string              `json:"remote_addr,omitempty"`
	DeviceID   string              `json:"device_id,omitempty"`
	Position   *coremodel.Position `json:"position,omitempty"`
	Command    *coremodel.Command  `json:"command,omitempty"`
	Error      string              `json:"error,omitempty"`
	Context    string              `json:"context,omitempty"`
}

// New 创建事件，自动填充 ID 和时间
func New(kind Kind) *Event {
	return &Event{ID: uuid.NewString(), Kind: kind, Time: time.Now().UTC()}
}

// NewError 错误事件，context 描述出错环节（decode、buffer、write 等）
func NewError(context string, err error) *Event {
	e := New(KindError)
	e.Context = context
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
