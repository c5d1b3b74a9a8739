package coremodel

import (
	"encoding/json"
	"strconv"
	"time"
)

// 常用属性键
const (
	KeyAlarms       = "alarms"
	KeyIgnition     = "ignition"
	KeyStatus       = "status"
	KeyRSSI         = "rssi"
	KeySatellites   = "satellites"
	KeyBatteryLevel = "batteryLevel"
	KeyBattery      = "battery"
	KeySteps        = "steps"
	KeyOdometer     = "odometer"
	KeyFuelLevel    = "fuelLevel"
	KeyResult       = "result"
	KeyType         = "type"
	KeyTurnovers    = "turnovers"

	PrefixTemp = "temp"
	PrefixIO   = "io"
)

// 告警类型
const (
	AlarmVibration = "vibration"
	AlarmSOS       = "sos"
	AlarmOverspeed = "overspeed"
	AlarmPowerCut  = "powerCut"
)

// Position 一帧解码得到的位置/状态报告
type Position struct {
	Protocol   string
	DeviceID   string
	Time       time.Time
	Valid      bool
	Latitude   float64
	Longitude  float64
	Altitude   int
	Speed      float64 // km/h
	Course     float64
	Network    *Network
	Attributes Attributes
}

// NewPosition 创建指定协议的空报告
func NewPosition(protocol string) *Position {
	return &Position{Protocol: protocol, Attributes: make(Attributes)}
}

// Set 写入属性
func (p *Position) Set(key string, v Value) { p.Attributes[key] = v }

// AddAlarm 追加告警，同类告警只记录一次并保持先后顺序
func (p *Position) AddAlarm(alarm string) {
	list, _ := p.Attributes.Strings(KeyAlarms)
	for _, a := range list {
		if a == alarm {
			return
		}
	}
	p.Attributes[KeyAlarms] = StringsValue(append(list, alarm))
}

// Alarms 当前告警列表
func (p *Position) Alarms() []string {
	list, _ := p.Attributes.Strings(KeyAlarms)
	return list
}

// HasAlarm 是否包含指定告警
func (p *Position) HasAlarm(alarm string) bool {
	for _, a := range p.Alarms() {
		if a == alarm {
			return true
		}
	}
	return false
}

func (p *Position) Ignition() (bool, bool) { return p.Attributes.Bool(KeyIgnition) }

// Status 原始状态字
func (p *Position) Status() (uint32, bool) {
	v, ok := p.Attributes.Int(KeyStatus)
	return uint32(v), ok
}

func (p *Position) BatteryLevel() (int64, bool) { return p.Attributes.Int(KeyBatteryLevel) }

// IOKey 第 n 个 IO 通道键名（1 起）
func IOKey(n int) string { return PrefixIO + strconv.Itoa(n) }

// TempKey 第 n 路温度键名（1 起）
func TempKey(n int) string { return PrefixTemp + strconv.Itoa(n) }

type positionJSON struct {
	Protocol   string     `json:"protocol"`
	DeviceID   string     `json:"device_id"`
	Time       time.Time  `json:"time"`
	Valid      bool       `json:"valid"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   int        `json:"altitude"`
	Speed      float64    `json:"speed"`
	Course     float64    `json:"course"`
	Network    *Network   `json:"network,omitempty"`
	Attributes Attributes `json:"attributes"`
}

func (p *Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionJSON{
		Protocol:   p.Protocol,
		DeviceID:   p.DeviceID,
		Time:       p.Time.UTC(),
		Valid:      p.Valid,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Altitude:   p.Altitude,
		Speed:      p.Speed,
		Course:     p.Course,
		Network:    p.Network,
		Attributes: p.Attributes,
	})
}
