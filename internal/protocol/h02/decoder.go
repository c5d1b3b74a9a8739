package h02

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// ProtocolName 协议名
const ProtocolName = "h02"

var (
	ErrEmptyFrame      = errors.New("h02: empty frame")
	ErrUnknownProtocol = errors.New("h02: unrecognized message")
	ErrMalformed       = errors.New("h02: malformed message")
	ErrUnknownDevice   = errors.New("h02: unknown device")
)

// 文本帧合法的首字段
var textPrefixes = map[string]bool{"*HQ": true, "*TQ": true, "*DW": true, "*hq": true}

// Message 一帧的解码结果
type Message struct {
	Position *coremodel.Position
	Subtype  Subtype
	Binary   bool
	// RawID 线路上的原始设备标识，连接关闭时据此清理身份表
	RawID string
}

// Decoder 将完整帧解码为位置报告。可被多个连接共享（身份表自带锁）。
type Decoder struct {
	sessions *DeviceSessions
	now      func() time.Time
}

// NewDecoder resolver 为 nil 时原始标识即规范ID
func NewDecoder(resolver Resolver) *Decoder {
	return &Decoder{sessions: NewDeviceSessions(resolver), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock 替换时间源（测试用）
func (d *Decoder) SetClock(now func() time.Time) { d.now = now }

// Sessions 身份缓存表
func (d *Decoder) Sessions() *DeviceSessions { return d.sessions }

// Decode 解码一帧。
// ErrUnknownProtocol 表示不是本协议的数据，ErrMalformed 表示字段不足或格式错误。
func (d *Decoder) Decode(ctx context.Context, frame []byte, remote net.Addr) (*Message, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	switch frame[0] {
	case MarkerText:
		return d.decodeText(ctx, frame, remote)
	case MarkerBinary:
		return d.decodeBinary(ctx, frame, remote)
	default:
		return nil, fmt.Errorf("%w: marker 0x%02X", ErrUnknownProtocol, frame[0])
	}
}

func (d *Decoder) resolve(ctx context.Context, rawID string, remote net.Addr) (string, error) {
	id, ok, err := d.sessions.Resolve(ctx, rawID, remote)
	if err != nil {
		return "", fmt.Errorf("resolve device %q: %w", rawID, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, rawID)
	}
	return id, nil
}

func (d *Decoder) decodeText(ctx context.Context, frame []byte, remote net.Addr) (*Message, error) {
	s := newSentence(string(frame), d.now())
	if len(s.fields) < 2 || !textPrefixes[s.fields[0]] {
		return nil, ErrUnknownProtocol
	}

	deviceID, err := d.resolve(ctx, s.fields[1], remote)
	if err != nil {
		return nil, err
	}

	pos := coremodel.NewPosition(ProtocolName)
	pos.DeviceID = deviceID
	pos.Valid = true
	pos.Time = s.now

	subtype := ParseSubtype(s.field(2))
	if err := textDecoders[subtype](s, pos); err != nil {
		// 未能绑定到连接的标识不留在身份表中
		d.sessions.Forget(s.fields[1])
		return nil, fmt.Errorf("%s: %w", subtype, err)
	}
	return &Message{Position: pos, Subtype: subtype, RawID: s.fields[1]}, nil
}

// sentence 已按逗号切分的文本帧，末尾 '#' 已去掉
type sentence struct {
	fields []string
	now    time.Time
}

func newSentence(raw string, now time.Time) *sentence {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, string(textEnd))
	return &sentence{fields: strings.Split(raw, ","), now: now}
}

func (s *sentence) has(i int) bool { return i >= 0 && i < len(s.fields) }

func (s *sentence) field(i int) string {
	if !s.has(i) {
		return ""
	}
	return strings.TrimSpace(s.fields[i])
}

func (s *sentence) require(n int) error {
	if len(s.fields) < n {
		return fmt.Errorf("%w: need %d fields, got %d", ErrMalformed, n, len(s.fields))
	}
	return nil
}
