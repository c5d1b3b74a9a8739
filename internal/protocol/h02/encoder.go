package h02

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taoyao-code/h02-server/internal/coremodel"
)

var (
	ErrUnsupportedCommand = errors.New("h02: unsupported command")
	ErrMissingParameter   = errors.New("h02: missing command parameter")
	ErrInvalidParameter   = errors.New("h02: invalid command parameter")
)

// OptionAlternative 定时上报使用 D1 指令而非 S71
const OptionAlternative = "protocol.alternative"

// Options 布尔配置项，按 key.<deviceId> > key.h02 > key 的顺序查找
type Options map[string]bool

// Lookup 返回第一个命中的配置值，均未配置时为 false
func (o Options) Lookup(key, deviceID string) bool {
	for _, k := range []string{key + "." + deviceID, key + "." + ProtocolName, key} {
		if v, ok := o[k]; ok {
			return v
		}
	}
	return false
}

// SupportedCommands 可下发的指令类型
func SupportedCommands() []coremodel.CommandType {
	return []coremodel.CommandType{
		coremodel.CommandAlarmArm,
		coremodel.CommandAlarmDisarm,
		coremodel.CommandEngineStop,
		coremodel.CommandEngineResume,
		coremodel.CommandPositionPeriodic,
	}
}

// Encoder 下行指令编码器。设备ID到线路标识的映射与解码器的身份表相互独立。
type Encoder struct {
	options  Options
	identity *DeviceSessions
	now      func() time.Time
}

// NewEncoder resolver 为 nil 时设备ID原样作为线路标识
func NewEncoder(options Options, resolver Resolver) *Encoder {
	if options == nil {
		options = Options{}
	}
	return &Encoder{
		options:  options,
		identity: NewDeviceSessions(resolver),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时间源（测试用）
func (e *Encoder) SetClock(now func() time.Time) { e.now = now }

// Identities 设备ID -> 线路标识缓存表
func (e *Encoder) Identities() *DeviceSessions { return e.identity }

// Encode 编码为 *HQ,<id>,<type>,<HHMMSS>[,params]#
func (e *Encoder) Encode(ctx context.Context, cmd *coremodel.Command) ([]byte, error) {
	if cmd == nil {
		return nil, ErrUnsupportedCommand
	}
	uniqueID, ok, err := e.identity.Resolve(ctx, cmd.DeviceID, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve device %q: %w", cmd.DeviceID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.DeviceID)
	}

	now := e.now()
	switch cmd.Type {
	case coremodel.CommandAlarmArm:
		return formatCommand(now, uniqueID, "SCF", "0", "0"), nil
	case coremodel.CommandAlarmDisarm:
		return formatCommand(now, uniqueID, "SCF", "1", "1"), nil
	case coremodel.CommandEngineStop:
		return formatCommand(now, uniqueID, "S20", "1", "1"), nil
	case coremodel.CommandEngineResume:
		return formatCommand(now, uniqueID, "S20", "1", "0"), nil
	case coremodel.CommandPositionPeriodic:
		v, ok := cmd.Param(coremodel.KeyFrequency)
		frequency := strings.TrimSpace(v.String())
		if !ok || frequency == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingParameter, coremodel.KeyFrequency)
		}
		if !allDigits(frequency) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, coremodel.KeyFrequency, frequency)
		}
		if e.options.Lookup(OptionAlternative, cmd.DeviceID) {
			return formatCommand(now, uniqueID, "D1", frequency), nil
		}
		return formatCommand(now, uniqueID, "S71", "22", frequency), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Type)
	}
}

func formatCommand(now time.Time, uniqueID, kind string, params ...string) []byte {
	var sb strings.Builder
	sb.WriteString("*HQ,")
	sb.WriteString(uniqueID)
	sb.WriteByte(',')
	sb.WriteString(kind)
	sb.WriteByte(',')
	sb.WriteString(now.UTC().Format("150405"))
	for _, p := range params {
		sb.WriteByte(',')
		sb.WriteString(p)
	}
	sb.WriteByte(textEnd)
	return []byte(sb.String())
}

// allDigits 参数直接拼入报文，只允许十进制数字
func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
