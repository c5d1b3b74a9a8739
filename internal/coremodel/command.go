package coremodel

// CommandType 下行指令类型
type CommandType string

const (
	CommandAlarmArm         CommandType = "alarmArm"
	CommandAlarmDisarm      CommandType = "alarmDisarm"
	CommandEngineStop       CommandType = "engineStop"
	CommandEngineResume     CommandType = "engineResume"
	CommandPositionPeriodic CommandType = "positionPeriodic"
)

// 指令参数键
const (
	KeyFrequency = "frequency"
)

// Command 下行指令
type Command struct {
	Type     CommandType `json:"type"`
	DeviceID string      `json:"device_id"`
	Params   Attributes  `json:"params,omitempty"`
}

// NewCommand 创建指令
func NewCommand(t CommandType, deviceID string) *Command {
	return &Command{Type: t, DeviceID: deviceID, Params: make(Attributes)}
}

// WithParam 设置参数并返回自身，便于链式构造
func (c *Command) WithParam(key string, v Value) *Command {
	if c.Params == nil {
		c.Params = make(Attributes)
	}
	c.Params[key] = v
	return c
}

// Param 取参数
func (c *Command) Param(key string) (Value, bool) {
	v, ok := c.Params[key]
	return v, ok
}
